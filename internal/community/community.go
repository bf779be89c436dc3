package community

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

var (
	ErrCommunityNotFound = errors.New("community not found")
	ErrEmptyName         = errors.New("community name is required")
	ErrEmptyMessage      = errors.New("message text is required")
)

const (
	listKey = "communities"

	SystemSender = "System"
	SelfSender   = "You"
)

type Community struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MemberCount int    `json:"memberCount"`
	Joined      bool   `json:"isJoined"`
}

type Message struct {
	Sender    string `json:"senderName"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	IsMe      bool   `json:"isMe"`
}

func defaultCommunities() []Community {
	return []Community{
		{ID: uuid.NewString(), Name: "Punjab Kisan Union", Description: "Official union for Punjab farmers.", MemberCount: 1250},
		{ID: uuid.NewString(), Name: "All India Kisan Sabha", Description: "National level farmers organization.", MemberCount: 5400},
		{ID: uuid.NewString(), Name: "Organic Farmers Group", Description: "Discuss organic farming techniques.", MemberCount: 320},
	}
}

// Service keeps farmer groups and their chat history in a cache store.
// Every mutation is a read-modify-write under one lock, so a Service must be
// the only writer of its store namespace.
type Service struct {
	mu    sync.Mutex
	store cache.Store
	clock timeutil.Clock
}

func NewService(store cache.Store, clock timeutil.Clock) *Service {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	return &Service{store: store, clock: clock}
}

// List returns all communities, seeding the defaults on first use.
func (s *Service) List(ctx context.Context) ([]Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.find(ctx, id)
}

// Create adds a community with its creator as the only, joined, member.
// New communities are listed first.
func (s *Service) Create(ctx context.Context, name, description string) (Community, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Community{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.list(ctx)
	if err != nil {
		return Community{}, err
	}
	c := Community{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		MemberCount: 1,
		Joined:      true,
	}
	all = append([]Community{c}, all...)
	if err := s.putJSON(ctx, listKey, all); err != nil {
		return Community{}, err
	}
	return c, nil
}

// Join marks a community as joined. Joining twice does not count twice.
func (s *Service) Join(ctx context.Context, id string) (Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.list(ctx)
	if err != nil {
		return Community{}, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return Community{}, fmt.Errorf("%w: %s", ErrCommunityNotFound, id)
	}
	if all[idx].Joined {
		return all[idx], nil
	}
	all[idx].Joined = true
	all[idx].MemberCount++
	if err := s.putJSON(ctx, listKey, all); err != nil {
		return Community{}, err
	}
	return all[idx], nil
}

// Messages returns the chat history of a community. An empty history starts
// with a welcome message from the system.
func (s *Service) Messages(ctx context.Context, id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.messages(ctx, c)
}

// Post appends a message from the local user.
func (s *Service) Post(ctx context.Context, id, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.find(ctx, id)
	if err != nil {
		return Message{}, err
	}
	history, err := s.messages(ctx, c)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Sender: SelfSender, Text: text, Timestamp: s.clock.Now().UnixMilli(), IsMe: true}
	history = append(history, msg)
	if err := s.putJSON(ctx, chatKey(id), history); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func chatKey(id string) string {
	return "chat_" + id
}

func indexOf(all []Community, id string) int {
	for i, c := range all {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) find(ctx context.Context, id string) (Community, error) {
	all, err := s.list(ctx)
	if err != nil {
		return Community{}, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return Community{}, fmt.Errorf("%w: %s", ErrCommunityNotFound, id)
	}
	return all[idx], nil
}

func (s *Service) list(ctx context.Context) ([]Community, error) {
	var all []Community
	found, err := s.getJSON(ctx, listKey, &all)
	if err != nil {
		return nil, err
	}
	if found {
		return all, nil
	}
	all = defaultCommunities()
	if err := s.putJSON(ctx, listKey, all); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Service) messages(ctx context.Context, c Community) ([]Message, error) {
	var history []Message
	found, err := s.getJSON(ctx, chatKey(c.ID), &history)
	if err != nil {
		return nil, err
	}
	if found && len(history) > 0 {
		return history, nil
	}
	welcome := Message{
		Sender:    SystemSender,
		Text:      fmt.Sprintf("Welcome to the %s group!", c.Name),
		Timestamp: s.clock.Now().UnixMilli(),
	}
	return []Message{welcome}, nil
}

func (s *Service) getJSON(ctx context.Context, key string, v any) (bool, error) {
	entry, err := s.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("community: read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(entry.Payload), v); err != nil {
		return false, fmt.Errorf("community: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("community: encode %s: %w", key, err)
	}
	entry := cache.Entry{Payload: string(data), LastUpdated: s.clock.Now()}
	if err := s.store.Put(ctx, key, entry); err != nil {
		return fmt.Errorf("community: write %s: %w", key, err)
	}
	return nil
}
