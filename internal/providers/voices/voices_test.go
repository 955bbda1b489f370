package voices

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"kiosk/internal/domain"
)

func raw(id, name, extra string) RawVoice {
	doc := `{"voice_id":"` + id + `","name":"` + name + `"` + extra + `}`
	return RawVoice{
		Voice: domain.Voice{ID: id, DisplayName: name, ProviderVoiceID: id},
		Raw:   json.RawMessage(doc),
	}
}

func TestFilterByTags(t *testing.T) {
	all := []RawVoice{
		raw("a", "Anna", `,"labels":{"use_case":"KI Event"}`),
		raw("b", "Bernd", `,"labels":{}`),
		raw("c", "Clara", `,"description":"Stimme fuer ki-event Messe"`),
	}

	got, fellBack := FilterByTags(all, DefaultTags)
	if fellBack {
		t.Fatalf("did not expect fallback")
	}
	want := []domain.Voice{all[0].Voice, all[2].Voice}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("matched mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterByTagsFallsBackToAll(t *testing.T) {
	all := []RawVoice{raw("a", "Anna", ""), raw("b", "Bernd", "")}

	got, fellBack := FilterByTags(all, DefaultTags)
	if !fellBack {
		t.Fatalf("expected fallback")
	}
	if diff := cmp.Diff([]domain.Voice{all[0].Voice, all[1].Voice}, got); diff != "" {
		t.Fatalf("fallback mismatch (-want +got):\n%s", diff)
	}

	got, fellBack = FilterByTags(nil, DefaultTags)
	if !fellBack || len(got) != 0 {
		t.Fatalf("empty input: got %v fellBack=%v", got, fellBack)
	}
}

func TestElevenLabsSourceListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "el-key" {
			t.Errorf("unexpected request %s key=%q", r.URL.Path, r.Header.Get("xi-api-key"))
		}
		_, _ = io.WriteString(w, `{"voices":[
			{"voice_id":"v1","name":"Max","labels":{"event":"KI-Event"}},
			{"voice_id":"v2","name":"Eva","labels":{}},
			{"name":"broken"}
		]}`)
	}))
	defer srv.Close()

	source := NewElevenLabsSource(ElevenLabsOptions{APIKey: "el-key", BaseURL: srv.URL})
	cat, err := source.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	want := domain.Catalog{Voices: []domain.Voice{{ID: "v1", DisplayName: "Max", ProviderVoiceID: "v1"}}}
	if diff := cmp.Diff(want, cat); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestElevenLabsSourceErrors(t *testing.T) {
	if _, err := NewElevenLabsSource(ElevenLabsOptions{}).ListVoices(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("missing key error = %v", err)
	}

	cases := []struct {
		status int
		want   error
	}{
		{http.StatusInternalServerError, domain.ErrSynthesis},
		{http.StatusUnauthorized, domain.ErrConfiguration},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := NewElevenLabsSource(ElevenLabsOptions{APIKey: "k", BaseURL: srv.URL}).ListVoices(context.Background())
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
	}

	// Unreachable host.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	if _, err := NewElevenLabsSource(ElevenLabsOptions{APIKey: "k", BaseURL: url}).ListVoices(context.Background()); domain.KindOf(err) != domain.KindSynthesis {
		t.Fatalf("transport error kind = %q", domain.KindOf(err))
	}
}

type countingSource struct {
	calls atomic.Int32
	delay time.Duration
	cat   domain.Catalog
	err   error
}

func (s *countingSource) ListVoices(ctx context.Context) (domain.Catalog, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return s.cat, s.err
}

func TestCachedCatalogCachesAndRefreshes(t *testing.T) {
	src := &countingSource{cat: domain.Catalog{Voices: []domain.Voice{{ID: "v1"}}}}
	c := NewCachedCatalog(src, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := c.ListVoices(context.Background()); err != nil {
			t.Fatalf("ListVoices: %v", err)
		}
	}
	if src.calls.Load() != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls.Load())
	}
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if src.calls.Load() != 2 {
		t.Fatalf("source calls after refresh = %d, want 2", src.calls.Load())
	}
}

func TestCachedCatalogCollapsesConcurrentLoads(t *testing.T) {
	src := &countingSource{delay: 20 * time.Millisecond}
	c := NewCachedCatalog(src, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.ListVoices(context.Background())
		}()
	}
	wg.Wait()
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("source calls = %d, want 1", got)
	}
}

func TestCachedCatalogDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("down")}
	c := NewCachedCatalog(src, time.Minute)
	_, _ = c.ListVoices(context.Background())
	_, _ = c.ListVoices(context.Background())
	if src.calls.Load() != 2 {
		t.Fatalf("errors must not be cached, calls = %d", src.calls.Load())
	}
}

type stubRegistry struct {
	rows []domain.RegisteredVoice
	err  error
}

func (s stubRegistry) RegisterVoice(ctx context.Context, name, voiceID string) (*domain.RegisteredVoice, error) {
	return nil, errors.New("not implemented")
}

func (s stubRegistry) ListVoices(ctx context.Context) ([]domain.RegisteredVoice, error) {
	return s.rows, s.err
}

func TestRegistrySource(t *testing.T) {
	src := NewRegistrySource(stubRegistry{rows: []domain.RegisteredVoice{{ID: "1", Name: "Max", VoiceID: "el-1"}}})
	cat, err := src.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	want := domain.Catalog{Voices: []domain.Voice{{ID: "1", DisplayName: "Max", ProviderVoiceID: "el-1"}}}
	if diff := cmp.Diff(want, cat); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}
}

type gatedSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	cat     domain.Catalog
}

func (s *gatedSource) ListVoices(ctx context.Context) (domain.Catalog, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return s.cat, nil
	case <-ctx.Done():
		return domain.Catalog{}, ctx.Err()
	}
}

func TestCachedCatalogSharedLoadSurvivesCallerCancel(t *testing.T) {
	src := &gatedSource{
		started: make(chan struct{}),
		release: make(chan struct{}),
		cat:     domain.Catalog{Voices: []domain.Voice{{ID: "v1"}}},
	}
	c := NewCachedCatalog(src, time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctxA)
		errA <- err
	}()
	<-src.started

	type result struct {
		cat domain.Catalog
		err error
	}
	resB := make(chan result, 1)
	go func() {
		cat, err := c.Refresh(context.Background())
		resB <- result{cat, err}
	}()
	// Let the second caller join the load in flight.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled caller did not return")
	}

	close(src.release)
	select {
	case res := <-resB:
		if res.err != nil {
			t.Fatalf("other caller err = %v", res.err)
		}
		if diff := cmp.Diff(src.cat, res.cat); diff != "" {
			t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("other caller did not return")
	}
}

func TestRegistrySourceErrorKind(t *testing.T) {
	_, err := NewRegistrySource(stubRegistry{err: errors.New("db gone")}).ListVoices(context.Background())
	if domain.KindOf(err) != domain.KindPersistence {
		t.Fatalf("plain error kind = %q, want persistence", domain.KindOf(err))
	}
	_, err = NewRegistrySource(stubRegistry{err: domain.ConfigurationError("voice registry", errors.New("no url"))}).ListVoices(context.Background())
	if domain.KindOf(err) != domain.KindConfiguration {
		t.Fatalf("classified error kind = %q, want configuration", domain.KindOf(err))
	}
}
