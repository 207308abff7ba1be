package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/internal/observability"
	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/ai"
	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/plugin/extract/title"
	"github.com/hrygo/eventsense/store/cache"
)

// Wednesday, 2025-01-15 08:00 UTC.
var fixedNow = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

func newParser(t *testing.T, cfg Config, opts ...Option) *HybridParser {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	p, err := NewHybridParser(cfg, opts...)
	require.NoError(t, err)
	return p
}

func at(d, h int) time.Time {
	return time.Date(2025, 1, d, h, 0, 0, 0, time.UTC)
}

type slowTitles struct{ delay time.Duration }

func (s slowTitles) ExtractTitle(string) title.Result {
	time.Sleep(s.delay)
	return title.Result{Title: "Too late", Confidence: 1}
}

func TestParse_RegexPrimary(t *testing.T) {
	p := newParser(t, DefaultConfig())

	ev := p.Parse(context.Background(), "Dinner at 7pm @ Starbucks", "")
	require.NotNil(t, ev)
	assert.Equal(t, event.PathRegexPrimary, ev.ParsingPath)
	assert.Contains(t, ev.Title, "Dinner")
	assert.Contains(t, ev.Location, "Starbucks")
	assert.GreaterOrEqual(t, ev.FieldConfidence(event.FieldLocation), 0.9)
	require.NotNil(t, ev.Start)
	assert.Equal(t, at(15, 19), *ev.Start)
	assert.Equal(t, at(15, 20), *ev.End)
	assert.GreaterOrEqual(t, ev.Confidence, 0.6)
	assert.False(t, ev.NeedsConfirmation)
	assert.Empty(t, ev.Errors())

	for _, f := range []event.Field{event.FieldTitle, event.FieldStart, event.FieldLocation} {
		require.Contains(t, ev.FieldResults, f)
		assert.Equal(t, event.SourceRegex, ev.FieldResults[f].Source, f)
	}
	assert.NotEmpty(t, ev.Metadata["parse_id"])
	assert.Equal(t, "plain", ev.Metadata["input_format"])

	snap := p.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Parses)
	assert.Equal(t, int64(1), snap.ByPath[string(event.PathRegexPrimary)])
}

func TestParse_InvalidInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInputLength = 20
	p := newParser(t, cfg)

	tests := []struct {
		name      string
		text      string
		clipboard string
		reason    string
	}{
		{"empty", "", "", "empty_input"},
		{"whitespace", "  \n\t", " ", "empty_input"},
		{"too long", strings.Repeat("a", 21), "", "input_too_long"},
		{"too long with clipboard", "Lunch at noon", "in the main cafeteria", "input_too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := p.Parse(context.Background(), tt.text, tt.clipboard)
			require.NotNil(t, ev)
			assert.Zero(t, ev.Confidence)
			assert.True(t, ev.NeedsConfirmation)
			assert.Contains(t, ev.Errors(), string(exerrors.ErrCodeInputInvalid))
			assert.Equal(t, tt.reason, ev.Metadata["reason"])
		})
	}
}

func TestParse_DeterministicBackup(t *testing.T) {
	p := newParser(t, DefaultConfig())

	ev := p.Parse(context.Background(), "Drinks with Ana this evening", "")
	assert.Equal(t, event.PathBackup, ev.ParsingPath)
	require.NotNil(t, ev.Start)
	assert.Equal(t, at(15, 19), *ev.Start)

	fr := ev.FieldResults[event.FieldStart]
	require.NotNil(t, fr)
	assert.Equal(t, event.SourceBackup, fr.Source)
	assert.GreaterOrEqual(t, fr.Confidence, 0.6)
	assert.LessOrEqual(t, fr.Confidence, 0.8)
	assert.Empty(t, fr.Alternatives, "alternatives hold competing values only")
	assert.NotEmpty(t, ev.Metadata["backup_matched"])
}

func TestParse_BackupDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableBackup = false
	p := newParser(t, cfg)

	ev := p.Parse(context.Background(), "Drinks with Ana this evening", "")
	assert.Equal(t, event.PathRegexPrimary, ev.ParsingPath)
	assert.Nil(t, ev.Start)
	assert.True(t, ev.NeedsConfirmation)
}

func TestParse_SaferDefaults(t *testing.T) {
	p := newParser(t, DefaultConfig())

	ev := p.Parse(context.Background(), "Book club Friday", "")
	require.NotNil(t, ev.Start)
	assert.Equal(t, at(17, 9), *ev.Start)
	assert.Equal(t, at(17, 10), *ev.End)
	assert.Equal(t, event.SourceDefault, ev.FieldResults[event.FieldStart].Source)
	assert.True(t, ev.NeedsConfirmation)
}

func TestParse_LLMFallback(t *testing.T) {
	start := at(16, 15)
	provider := ai.NewMockProvider()
	provider.Extraction = &ai.Extraction{
		Fields:          ai.EventFields{Title: "Team catch-up", Start: &start},
		Confidence:      0.8,
		FieldConfidence: map[string]float64{"title": 0.01, "start_datetime": 0.85},
	}
	p := newParser(t, DefaultConfig(), WithProvider(provider))

	ev := p.Parse(context.Background(), "Catch up with the team", "")
	assert.Equal(t, event.PathLLM, ev.ParsingPath)
	require.NotNil(t, ev.Start)
	assert.Equal(t, start, *ev.Start)
	assert.Equal(t, start.Add(time.Hour), *ev.End)
	assert.Equal(t, event.SourceLLM, ev.FieldResults[event.FieldStart].Source)
	assert.Equal(t, 0.85, ev.FieldConfidence(event.FieldStart))
	assert.Contains(t, ev.Metadata["llm_fields"], string(event.FieldStart))
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, int64(1), p.Metrics().Snapshot().LLMCalls[observability.LLMAccepted])
}

func TestParse_LLMKeepsBetterDeterministicFields(t *testing.T) {
	provider := ai.NewMockProvider()
	provider.Extraction = &ai.Extraction{
		Fields:          ai.EventFields{Location: "Somewhere"},
		FieldConfidence: map[string]float64{"location": 0.3},
	}
	p := newParser(t, DefaultConfig(), WithProvider(provider))

	// Both the title and the location are found by the regex stage; the
	// missing start sends the request to the provider.
	ev := p.Parse(context.Background(), "Team meeting @ Starbucks", "")
	assert.Equal(t, 1, provider.Calls())
	assert.Contains(t, ev.Location, "Starbucks")
	assert.Equal(t, event.SourceRegex, ev.FieldResults[event.FieldLocation].Source)
	assert.NotEqual(t, event.PathLLM, ev.ParsingPath)
	assert.Equal(t, int64(1), p.Metrics().Snapshot().LLMCalls[observability.LLMRejected])
	assert.Contains(t, provider.Hints()[0], "Starbucks")
}

func TestParse_LLMUnavailable(t *testing.T) {
	provider := ai.NewMockProvider()
	provider.Err = exerrors.CollaboratorUnavailable("mock", nil)
	store := cache.NewEventStore(time.Hour, nil, cache.NewMemoryTier(10, time.Hour))
	defer store.Close()
	p := newParser(t, DefaultConfig(), WithProvider(provider), WithStore(store))

	ev := p.Parse(context.Background(), "Catch up with the team", "")
	assert.NotEqual(t, event.PathLLM, ev.ParsingPath)
	assert.Contains(t, ev.Errors(), string(exerrors.ErrCodeCollaboratorUnavailable))
	assert.True(t, ev.NeedsConfirmation)
	assert.Equal(t, int64(1), p.Metrics().Snapshot().LLMCalls[observability.LLMUnavailable])

	// Degraded results are not cached.
	again := p.Parse(context.Background(), "Catch up with the team", "")
	assert.False(t, again.CacheHit)
	assert.Equal(t, 2, provider.Calls())
}

func TestParse_ProviderNotAvailable(t *testing.T) {
	provider := ai.NewMockProvider()
	provider.Available = false
	p := newParser(t, DefaultConfig(), WithProvider(provider))

	ev := p.Parse(context.Background(), "Catch up with the team", "")
	assert.Zero(t, provider.Calls())
	assert.Empty(t, ev.Errors())
}

func TestParse_TimeoutFallback(t *testing.T) {
	provider := ai.NewMockProvider()
	provider.Delay = time.Second
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	p := newParser(t, cfg, WithProvider(provider))

	started := time.Now()
	ev := p.Parse(context.Background(), "Catch up with the team", "")
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, event.PathTimeout, ev.ParsingPath)
	assert.True(t, ev.NeedsConfirmation)
	assert.Contains(t, ev.Errors(), string(exerrors.ErrCodeExtractionTimeout))
	assert.Equal(t, int64(1), p.Metrics().Snapshot().LLMCalls[observability.LLMTimeout])
}

func TestParse_FieldTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FieldTimeout = 20 * time.Millisecond
	p := newParser(t, cfg)
	p.titles = slowTitles{delay: 200 * time.Millisecond}

	ev := p.Parse(context.Background(), "Dinner at 7pm @ Starbucks", "")
	assert.Empty(t, ev.Title, "late title is discarded")
	assert.Contains(t, ev.Location, "Starbucks", "other fields are unaffected")
	require.NotNil(t, ev.Start)
	assert.Contains(t, ev.Errors(), string(exerrors.ErrCodeExtractionTimeout))
	assert.Equal(t, []string{string(event.FieldTitle)}, ev.Metadata["timed_out_fields"])
	assert.Equal(t, int64(1), p.Metrics().Snapshot().FieldTimeouts[string(event.FieldTitle)])
}

func TestParse_CancelledCallerDoesNotSpoilSharedParse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.FieldTimeout = time.Second
	p := newParser(t, cfg)
	p.titles = slowTitles{delay: 150 * time.Millisecond}
	const text = "Dinner at 7pm @ Starbucks"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan *event.ParsedEvent, 1)
	go func() { first <- p.Parse(ctx, text, "") }()

	time.Sleep(20 * time.Millisecond)
	time.AfterFunc(20*time.Millisecond, cancel)
	second := p.Parse(context.Background(), text, "")

	assert.NotEqual(t, event.PathTimeout, second.ParsingPath)
	assert.Equal(t, "Too late", second.Title)
	assert.NotContains(t, second.Errors(), string(exerrors.ErrCodeExtractionTimeout))

	cancelled := <-first
	assert.Equal(t, event.PathTimeout, cancelled.ParsingPath)
	assert.True(t, cancelled.NeedsConfirmation)
	assert.Contains(t, cancelled.Errors(), string(exerrors.ErrCodeExtractionTimeout))
}

func TestFieldErr(t *testing.T) {
	tests := []struct {
		name  string
		field event.Field
		err   error
		want  string
	}{
		{"no error", event.FieldTitle, nil, ""},
		{"deadline", event.FieldLocation, context.DeadlineExceeded, "location: context deadline exceeded"},
		{"cancelled", event.FieldStart, context.Canceled, "start_datetime: context canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fieldErr(tt.field, tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			require.Error(t, got)
			assert.Equal(t, tt.want, got.Error())
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}

func TestParse_MergesClipboard(t *testing.T) {
	p := newParser(t, DefaultConfig())

	ev := p.Parse(context.Background(), "Team standup", "tomorrow at 10am in the main conference room")
	assert.Equal(t, true, ev.Metadata["merge_applied"])
	assert.Contains(t, ev.Location, "conference room")
	require.NotNil(t, ev.Start)
	assert.Equal(t, at(16, 10), *ev.Start)
}

func TestParse_Cache(t *testing.T) {
	store := cache.NewEventStore(time.Hour, nil, cache.NewMemoryTier(10, time.Hour))
	defer store.Close()
	p := newParser(t, DefaultConfig(), WithStore(store))

	first := p.Parse(context.Background(), "Dinner at 7pm @ Starbucks", "")
	assert.False(t, first.CacheHit)

	// Normalization makes the typographic variant share the entry.
	second := p.Parse(context.Background(), "  DINNER at 7pm  @ Starbucks ", "")
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Metadata["parse_id"], second.Metadata["parse_id"])

	snap := p.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.CacheLookups[observability.CacheMiss])
	assert.Equal(t, int64(1), snap.CacheLookups[observability.CacheHit])
}

func TestParse_ConcurrentIdenticalRequests(t *testing.T) {
	start := at(16, 15)
	provider := ai.NewMockProvider()
	provider.Delay = 100 * time.Millisecond
	provider.Extraction = &ai.Extraction{
		Fields:          ai.EventFields{Start: &start},
		FieldConfidence: map[string]float64{"start_datetime": 0.9},
	}
	store := cache.NewEventStore(time.Hour, nil, cache.NewMemoryTier(10, time.Hour))
	defer store.Close()
	p := newParser(t, DefaultConfig(), WithProvider(provider), WithStore(store))

	const n = 8
	var (
		wg    sync.WaitGroup
		ready = make(chan struct{})
		got   = make([]*event.ParsedEvent, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			got[i] = p.Parse(context.Background(), "Catch up with the team", "")
		}()
	}
	close(ready)
	wg.Wait()

	assert.Equal(t, 1, provider.Calls())
	for _, ev := range got {
		require.NotNil(t, ev)
		require.NotNil(t, ev.Start)
		assert.Equal(t, start, *ev.Start)
	}
	// Callers receive independent copies.
	got[0].Metadata["touched"] = true
	assert.NotContains(t, got[1].Metadata, "touched")
}

func TestParse_RequestContextFromCaller(t *testing.T) {
	p := newParser(t, DefaultConfig())
	rc := observability.NewRequestContextWithID(nil, "req-1", "parse", 5)
	ctx := observability.WithRequestContext(context.Background(), rc)

	ev := p.Parse(ctx, "Lunch at noon", "")
	require.NotNil(t, ev.Start)
	assert.Equal(t, at(15, 12), *ev.Start)
}

func TestNewHybridParser_BadPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AcceptPolicy = "confidence >="
	_, err := NewHybridParser(cfg)
	require.Error(t, err)
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodePatternCompileFailure))
}

func TestNewConfigFromProfile(t *testing.T) {
	t.Setenv("EVENTSENSE_PARSER_ENABLE_BACKUP", "false")
	t.Setenv("EVENTSENSE_LOCATION_ENABLE_COORDINATES", "true")
	t.Setenv("EVENTSENSE_DEFAULTS_START_HOUR", "10")
	prof, err := profile.Load(nil, "")
	require.NoError(t, err)

	cfg := NewConfigFromProfile(prof)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.False(t, cfg.EnableBackup)
	assert.True(t, cfg.Locations.EnableCoordinates)
	assert.Equal(t, 10, cfg.Defaults.StartHour)
	assert.Equal(t, 0.5, cfg.Defaults.Confidence)
	assert.Equal(t, 0.6, cfg.Threshold)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, DefaultAcceptPolicy, cfg.AcceptPolicy)
}

func TestPassThroughs(t *testing.T) {
	p := newParser(t, DefaultConfig())

	assert.Contains(t, p.ExtractTitle("Dinner at 7pm @ Starbucks").Title, "Dinner")
	assert.Equal(t, title.MethodEmpty, p.ExtractTitle("").Method)

	locs := p.ExtractLocations("Meet at 123 Main St, Toronto, M5V 3L9")
	require.NotEmpty(t, locs)
	assert.Contains(t, locs[0].Value, "123 Main St")
	assert.Contains(t, locs[0].Value, "M5V 3L9")
	assert.NotNil(t, p.ExtractLocations(""))

	info := p.ExtractAllInformation("Dinner at 7pm @ Starbucks")
	require.NotNil(t, info.BestTitle)
	require.NotNil(t, info.BestLocation)

	merged := p.EnhanceTextForParsing(context.Background(), "Team standup", "tomorrow at 10am in the main conference room")
	assert.True(t, merged.MergeApplied)
	assert.True(t, p.ShouldMergeWithClipboard("Team standup", "tomorrow at 10am in the main conference room"))

	ev := p.Parse(context.Background(), "Dinner at 7pm @ Starbucks", "")
	assert.InDelta(t, ev.Confidence, p.CalculateOverallConfidence(ev), 1e-9)
}
