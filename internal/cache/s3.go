package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rohmanhakim/krishield/pkg/hashutil"
)

const updatedAtMetaKey = "updated_at"

// S3Store keeps each payload as an object body with the refresh time in
// object metadata. Object names are digests of the cache key.
type S3Store struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, storeError("s3", ErrCauseUnavailable, err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

func NewS3Store(bucket, prefix string, client *s3.Client) *S3Store {
	return &S3Store{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + hashutil.KeyDigest(key)
}

func (s *S3Store) Get(ctx context.Context, key string) (Entry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, storeError("s3", ErrCauseReadFailure, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Entry{}, storeError("s3", ErrCauseReadFailure, err)
	}

	updatedAt, ok := parseUpdatedAt(out.Metadata)
	if !ok {
		return Entry{}, storeError("s3", ErrCauseCorruptEntry, errors.New("missing updated_at metadata"))
	}
	return Entry{Payload: string(body), LastUpdated: updatedAt}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, entry Entry) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader([]byte(entry.Payload)),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata: map[string]string{
			updatedAtMetaKey: strconv.FormatInt(entry.LastUpdated.UnixMilli(), 10),
		},
	})
	if err != nil {
		return storeError("s3", ErrCauseWriteFailure, err)
	}
	return nil
}

func (s *S3Store) Close() error {
	return nil
}

func parseUpdatedAt(meta map[string]string) (time.Time, bool) {
	val, ok := meta[updatedAtMetaKey]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
