package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
	"github.com/rohmanhakim/krishield/pkg/limiter"
	"github.com/rohmanhakim/krishield/pkg/retry"
)

/*
Client talks to the Gemini generateContent endpoint.

Responsibilities
- Attach the fixed system instruction to every request
- Space out calls and back off on 429 through the shared rate limiter
- Retry transport failures and 5xx with exponential backoff
- Classify responses into GeminiError causes

The client returns the model text as-is; it never parses it.
*/

const (
	Endpoint       = "gemini"
	jsonMimeType   = "application/json"
	maxErrorBody   = 4 << 10
	maxResponseLen = 8 << 20
)

type Options struct {
	BaseURL string
	Model   string
	APIKey  string
}

type Client struct {
	httpClient   *http.Client
	rateLimiter  limiter.RateLimiter
	retryParam   retry.RetryParam
	metadataSink metadata.MetadataSink
	baseURL      string
	model        string
	apiKey       string
}

func NewClient(
	httpClient *http.Client,
	rateLimiter limiter.RateLimiter,
	retryParam retry.RetryParam,
	metadataSink metadata.MetadataSink,
	opts Options,
) *Client {
	return &Client{
		httpClient:   httpClient,
		rateLimiter:  rateLimiter,
		retryParam:   retryParam,
		metadataSink: metadataSink,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		model:        opts.Model,
		apiKey:       opts.APIKey,
	}
}

// WithAPIKey returns a copy of the client that authenticates with key.
func (c *Client) WithAPIKey(key string) *Client {
	clone := *c
	clone.apiKey = key
	return &clone
}

func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// GenerateText sends a plain prompt and returns the model's text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, failure.ClassifiedError) {
	return c.generate(ctx, "Client.GenerateText", Payload{
		Contents: []Content{userContent(Part{Text: prompt})},
	})
}

// GenerateJSON asks for application/json output, optionally constrained by schema.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, failure.ClassifiedError) {
	return c.generate(ctx, "Client.GenerateJSON", Payload{
		Contents: []Content{userContent(Part{Text: prompt})},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: jsonMimeType,
			ResponseSchema:   schema,
		},
	})
}

// AnalyzeImage sends an inline image with the diagnosis instructions.
// An empty question falls back to a generic crop disease question.
func (c *Client) AnalyzeImage(ctx context.Context, image []byte, mimeType, question string) (string, failure.ClassifiedError) {
	if len(image) == 0 {
		return "", &GeminiError{Message: "image is empty", Cause: ErrCauseInvalidRequest}
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	return c.generate(ctx, "Client.AnalyzeImage", Payload{
		Contents: []Content{userContent(
			Part{Text: imagePrompt(strings.TrimSpace(question))},
			Part{InlineData: &InlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(image),
			}},
		)},
	})
}

func userContent(parts ...Part) Content {
	return Content{Role: "user", Parts: parts}
}

func (c *Client) generate(ctx context.Context, callerMethod string, payload Payload) (string, failure.ClassifiedError) {
	if c.apiKey == "" {
		err := &GeminiError{
			Message: "no Gemini API key configured; set one with `krishield settings set-key`",
			Cause:   ErrCauseMissingAPIKey,
		}
		c.recordError(callerMethod, err)
		return "", err
	}

	payload.SystemInstruction = &Content{Parts: []Part{{Text: SystemInstruction}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &GeminiError{Message: fmt.Sprintf("failed to marshal payload: %v", err), Cause: ErrCauseInvalidRequest}
	}

	startTime := time.Now()
	lastStatus := 0
	result := retry.Retry(ctx, c.retryParam, func(ctx context.Context) (string, failure.ClassifiedError) {
		if err := c.rateLimiter.Wait(ctx, Endpoint); err != nil {
			return "", &GeminiError{Message: err.Error(), Cause: ErrCauseNetwork}
		}

		text, status, callErr := c.performRequest(ctx, body)
		lastStatus = status
		if callErr != nil {
			if callErr.Cause == ErrCauseQuotaExceeded {
				c.rateLimiter.Backoff(Endpoint)
			}
			return "", callErr
		}
		c.rateLimiter.ResetBackoff(Endpoint)
		return text, nil
	})

	c.metadataSink.RecordRemoteCall(Endpoint, lastStatus, time.Since(startTime), result.Attempts())

	if result.IsFailure() {
		c.recordError(callerMethod, result.Err())
		return "", result.Err()
	}
	return result.Value(), nil
}

func (c *Client) performRequest(ctx context.Context, body []byte) (string, int, *GeminiError) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, &GeminiError{Message: fmt.Sprintf("failed to create request: %v", err), Cause: ErrCauseInvalidRequest}
	}
	req.Header.Set("Content-Type", jsonMimeType)
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, &GeminiError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: ctx.Err() == nil,
			Cause:     ErrCauseNetwork,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, classifyStatus(resp)
	}

	var parsed Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseLen)).Decode(&parsed); err != nil {
		return "", resp.StatusCode, &GeminiError{
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			Retryable:  true,
			Cause:      ErrCauseDecode,
			StatusCode: resp.StatusCode,
		}
	}

	text, gerr := extractText(parsed)
	if gerr != nil {
		gerr.StatusCode = resp.StatusCode
		return "", resp.StatusCode, gerr
	}
	return text, resp.StatusCode, nil
}

func classifyStatus(resp *http.Response) *GeminiError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := upstreamMessage(raw, resp.Status)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &GeminiError{Message: message, Retryable: true, Cause: ErrCauseQuotaExceeded, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &GeminiError{Message: message, Retryable: true, Cause: ErrCauseServerError, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusBadRequest:
		return &GeminiError{Message: message, Cause: ErrCauseInvalidRequest, StatusCode: resp.StatusCode}
	default:
		return &GeminiError{Message: message, Cause: ErrCauseRejected, StatusCode: resp.StatusCode}
	}
}

func upstreamMessage(raw []byte, status string) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return fmt.Sprintf("%s: %s", status, text)
	}
	return status
}

func extractText(resp Response) (string, *GeminiError) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", &GeminiError{
				Message: fmt.Sprintf("prompt blocked by safety filter (%s)", resp.PromptFeedback.BlockReason),
				Cause:   ErrCauseBlocked,
			}
		}
		return "", &GeminiError{Message: "no candidates in response", Cause: ErrCauseEmptyResponse}
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		if candidate.FinishReason == "SAFETY" {
			return "", &GeminiError{Message: "response blocked by safety filter", Cause: ErrCauseBlocked}
		}
		return "", &GeminiError{Message: fmt.Sprintf("no content found in response (finish reason %q)", candidate.FinishReason), Cause: ErrCauseEmptyResponse}
	}
	return sb.String(), nil
}

func (c *Client) recordError(callerMethod string, err failure.ClassifiedError) {
	cause := metadata.CauseUnknown
	var geminiErr *GeminiError
	if errors.As(err, &geminiErr) {
		cause = mapGeminiErrorToMetadataCause(geminiErr)
	}
	c.metadataSink.RecordError(
		time.Now(),
		"gemini",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrEndpoint, Endpoint),
			metadata.NewAttr(metadata.AttrModel, c.model),
		},
	)
}
