package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kiosk/internal/domain"
	"kiosk/internal/domain/optioncfg"
	"kiosk/internal/http/handlers"
	"kiosk/internal/infra"
	"kiosk/internal/locale"
	"kiosk/internal/middleware"
	"kiosk/internal/pipeline"
	"kiosk/internal/session"
)

const testVideoURL = "https://replicate.delivery/out.mp4"

type fakeImages struct{}

func (fakeImages) SynthesizeImage(ctx context.Context, src domain.SourceImage, opts domain.Options) (domain.GeneratedImage, error) {
	return domain.GeneratedImage{Data: []byte("portrait"), MIMEType: "image/png"}, nil
}

type fakeSpeech struct{}

func (fakeSpeech) SynthesizeSpeech(ctx context.Context, text, voiceID string) (domain.Audio, error) {
	return domain.Audio{Data: []byte("audio"), MIMEType: "audio/mpeg"}, nil
}

type fakeVideo struct{}

func (fakeVideo) SynthesizeVideo(ctx context.Context, img domain.GeneratedImage, audio domain.Audio) (domain.VideoReference, error) {
	return testVideoURL, nil
}

type fakeCatalog struct{}

func (fakeCatalog) ListVoices(ctx context.Context) (domain.Catalog, error) {
	return domain.Catalog{Voices: []domain.Voice{{ID: "v1", DisplayName: "Max", ProviderVoiceID: "abc123"}}}, nil
}

func (c fakeCatalog) Refresh(ctx context.Context) (domain.Catalog, error) { return c.ListVoices(ctx) }

type fakeHistory struct{}

func (fakeHistory) RecordGeneration(ctx context.Context, rec domain.GenerationRecord) error {
	return nil
}

type memRegistry struct {
	mu    sync.Mutex
	items []domain.RegisteredVoice
}

func (m *memRegistry) RegisterVoice(ctx context.Context, name, voiceID string) (*domain.RegisteredVoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := domain.RegisteredVoice{ID: "r1", Name: name, VoiceID: voiceID, CreatedAt: time.Unix(0, 0).UTC()}
	m.items = append(m.items, v)
	return &v, nil
}

func (m *memRegistry) ListVoices(ctx context.Context) ([]domain.RegisteredVoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RegisteredVoice(nil), m.items...), nil
}

func newTestServer(t *testing.T, cfg *infra.Config) *httptest.Server {
	t.Helper()
	tr, err := locale.New("de")
	if err != nil {
		t.Fatalf("locale.New: %v", err)
	}
	orch, err := pipeline.New(pipeline.Deps{
		Images:   fakeImages{},
		Speech:   fakeSpeech{},
		Video:    fakeVideo{},
		Voices:   fakeCatalog{},
		History:  fakeHistory{},
		Messages: tr,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	reg := pipeline.NewRegistry(orch, time.Minute)
	t.Cleanup(reg.Close)

	opts, err := optioncfg.Default()
	if err != nil {
		t.Fatalf("optioncfg.Default: %v", err)
	}
	app, err := handlers.NewApp(cfg, zerolog.Nop(), handlers.Deps{
		Sessions: reg,
		Options:  opts,
		Locale:   tr,
		Voices:   &memRegistry{},
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	srv := httptest.NewServer(NewRouter(app))
	t.Cleanup(srv.Close)
	return srv
}

func kioskConfig() *infra.Config {
	return &infra.Config{AppEnv: "test", AppMode: infra.ModeKiosk, SessionSecret: "test-session-secret-0123456789ab"}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any) (int, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}

func decodeSnapshot(t *testing.T, b []byte) pipeline.Snapshot {
	t.Helper()
	var snap pipeline.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		t.Fatalf("decode snapshot %s: %v", b, err)
	}
	return snap
}

func waitForStep(t *testing.T, c *http.Client, base string, want session.Step) pipeline.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		code, body := doJSON(t, c, http.MethodGet, base+"/api/session", nil)
		if code != http.StatusOK {
			t.Fatalf("GET /api/session = %d: %s", code, body)
		}
		snap := decodeSnapshot(t, body)
		if snap.Step == want && !snap.Busy {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("step = %s, want %s", snap.Step, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func captureBody() map[string]string {
	return map[string]string{"image": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("selfie"))}
}

func TestKioskFlow(t *testing.T) {
	srv := newTestServer(t, kioskConfig())
	c := newClient(t)

	code, body := doJSON(t, c, http.MethodPost, srv.URL+"/api/session", nil)
	if code != http.StatusCreated {
		t.Fatalf("start = %d: %s", code, body)
	}
	if snap := decodeSnapshot(t, body); snap.Step != session.StepCapture {
		t.Fatalf("start step = %s", snap.Step)
	}

	code, body = doJSON(t, c, http.MethodPost, srv.URL+"/api/session/capture", captureBody())
	if code != http.StatusOK {
		t.Fatalf("capture = %d: %s", code, body)
	}

	opts := domain.Options{Outfit: domain.OutfitSuit, Setting: domain.SettingNewsStudio, Style: domain.StyleCinematic}
	code, body = doJSON(t, c, http.MethodPost, srv.URL+"/api/session/options", opts)
	if code != http.StatusAccepted {
		t.Fatalf("options = %d: %s", code, body)
	}

	snap := waitForStep(t, c, srv.URL, session.StepVoiceInput)
	if snap.GeneratedImage == "" {
		t.Fatalf("generated image missing in voice input")
	}

	code, body = doJSON(t, c, http.MethodGet, srv.URL+"/api/session/voices", nil)
	if code != http.StatusOK {
		t.Fatalf("voices = %d: %s", code, body)
	}
	if !strings.Contains(string(body), `"voice_id":"abc123"`) {
		t.Fatalf("voices body = %s", body)
	}

	code, body = doJSON(t, c, http.MethodPost, srv.URL+"/api/session/voice", map[string]string{"voice_id": "v1", "text": "Hallo zusammen"})
	if code != http.StatusAccepted {
		t.Fatalf("voice = %d: %s", code, body)
	}

	snap = waitForStep(t, c, srv.URL, session.StepResult)
	if snap.VideoURL != testVideoURL {
		t.Fatalf("video url = %q", snap.VideoURL)
	}

	code, body = doJSON(t, c, http.MethodPost, srv.URL+"/api/session/restart", nil)
	if code != http.StatusOK {
		t.Fatalf("restart = %d: %s", code, body)
	}
	if snap := decodeSnapshot(t, body); snap.Step != session.StepCapture || snap.VideoURL != "" {
		t.Fatalf("after restart: %+v", snap)
	}
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t, kioskConfig())
	c := newClient(t)

	if code, _ := doJSON(t, c, http.MethodGet, srv.URL+"/api/session", nil); code != http.StatusNotFound {
		t.Fatalf("no session = %d, want 404", code)
	}

	doJSON(t, c, http.MethodPost, srv.URL+"/api/session", nil)

	code, body := doJSON(t, c, http.MethodPost, srv.URL+"/api/session/voice", map[string]string{"voice_id": "v1", "text": "hi"})
	if code != http.StatusConflict {
		t.Fatalf("voice in capture = %d: %s", code, body)
	}
	if !strings.Contains(string(body), `"code":"invalid_transition"`) {
		t.Fatalf("body = %s", body)
	}

	code, _ = doJSON(t, c, http.MethodPost, srv.URL+"/api/session/capture", map[string]string{"image": "not base64!"})
	if code != http.StatusBadRequest {
		t.Fatalf("bad image = %d, want 400", code)
	}

	doJSON(t, c, http.MethodPost, srv.URL+"/api/session/capture", captureBody())
	code, _ = doJSON(t, c, http.MethodPost, srv.URL+"/api/session/options", map[string]string{"outfit": "Pyjama"})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid options = %d, want 400", code)
	}
}

func TestSessionEventsStream(t *testing.T) {
	srv := newTestServer(t, kioskConfig())
	c := newClient(t)
	doJSON(t, c, http.MethodPost, srv.URL+"/api/session", nil)

	u, _ := url.Parse(srv.URL)
	header := http.Header{}
	for _, ck := range c.Jar.Cookies(u) {
		header.Add("Cookie", ck.String())
	}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/session/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v (resp %v)", err, resp)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snap pipeline.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if snap.Step != session.StepCapture {
		t.Fatalf("first step = %s", snap.Step)
	}

	doJSON(t, c, http.MethodPost, srv.URL+"/api/session/capture", captureBody())
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if snap.Step != session.StepSelection {
		t.Fatalf("update step = %s", snap.Step)
	}
}

func TestRegistryRoutes(t *testing.T) {
	t.Run("kiosk mode hides registry", func(t *testing.T) {
		srv := newTestServer(t, kioskConfig())
		code, _ := doJSON(t, newClient(t), http.MethodGet, srv.URL+"/api/registry/voices", nil)
		if code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", code)
		}
	})

	t.Run("registration mode requires operator", func(t *testing.T) {
		cfg := kioskConfig()
		cfg.AppMode = infra.ModeRegistration
		cfg.OperatorSecret = "operator-secret"
		srv := newTestServer(t, cfg)
		c := newClient(t)

		if code, _ := doJSON(t, c, http.MethodGet, srv.URL+"/api/registry/voices", nil); code != http.StatusUnauthorized {
			t.Fatalf("no token = %d, want 401", code)
		}

		token, err := middleware.SignJWT(cfg.OperatorSecret, middleware.TokenClaims{
			Sub:  "booth-1",
			Role: middleware.RoleOperator,
			Exp:  time.Now().Add(time.Hour).Unix(),
		})
		if err != nil {
			t.Fatalf("SignJWT: %v", err)
		}
		authed := func(method string, body any) (int, string) {
			var rd *bytes.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				rd = bytes.NewReader(b)
			} else {
				rd = bytes.NewReader(nil)
			}
			req, _ := http.NewRequest(method, srv.URL+"/api/registry/voices", rd)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := c.Do(req)
			if err != nil {
				t.Fatalf("%s: %v", method, err)
			}
			defer resp.Body.Close()
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(resp.Body)
			return resp.StatusCode, buf.String()
		}

		if code, body := authed(http.MethodPost, map[string]string{"name": "Max", "voice_id": "abc123"}); code != http.StatusCreated {
			t.Fatalf("register = %d: %s", code, body)
		}
		if code, _ := authed(http.MethodPost, map[string]string{"name": " "}); code != http.StatusBadRequest {
			t.Fatalf("register blank = %d, want 400", code)
		}
		code, body := authed(http.MethodGet, nil)
		if code != http.StatusOK || !strings.Contains(body, `"voice_id":"abc123"`) {
			t.Fatalf("list = %d: %s", code, body)
		}
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, kioskConfig())
	code, body := doJSON(t, newClient(t), http.MethodGet, srv.URL+"/v1/healthz", nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("healthz = %d: %s", code, body)
	}
}
