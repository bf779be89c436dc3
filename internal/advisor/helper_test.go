package advisor_test

import (
	"context"
	"sync"
	"time"

	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/gemini"
	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

var t0 = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeGenerator answers every call with the same reply and keeps the prompts.
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     failure.ClassifiedError
	prompts []string
	schemas []*gemini.Schema
	images  [][]byte
}

func (g *fakeGenerator) record(prompt string, schema *gemini.Schema) (string, failure.ClassifiedError) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.schemas = append(g.schemas, schema)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, failure.ClassifiedError) {
	return g.record(prompt, nil)
}

func (g *fakeGenerator) GenerateJSON(_ context.Context, prompt string, schema *gemini.Schema) (string, failure.ClassifiedError) {
	return g.record(prompt, schema)
}

func (g *fakeGenerator) AnalyzeImage(_ context.Context, image []byte, _ string, question string) (string, failure.ClassifiedError) {
	g.mu.Lock()
	g.images = append(g.images, image)
	g.mu.Unlock()
	return g.record(question, nil)
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *fakeGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fixture struct {
	store   *cache.MemoryStore
	clock   *timeutil.ManualClock
	fetcher *freshness.Fetcher
}

func newFixture() fixture {
	store := cache.NewMemoryStore()
	clock := timeutil.NewManualClock(t0)
	return fixture{
		store:   store,
		clock:   clock,
		fetcher: freshness.NewFetcher(store, &metadata.NoopSink{}, freshness.WithClock(clock)),
	}
}

func (f fixture) payload(key string) (string, bool) {
	entry, err := f.store.Get(context.Background(), key)
	if err != nil {
		return "", false
	}
	return entry.Payload, true
}

type fakeForecastSource struct {
	body  string
	err   failure.ClassifiedError
	calls int
}

func (s *fakeForecastSource) ForecastJSON(context.Context, float64, float64) (string, failure.ClassifiedError) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.body, nil
}
