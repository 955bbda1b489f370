package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"kiosk/internal/domain"
)

var testOptions = domain.Options{
	Outfit:      domain.OutfitSuit,
	Setting:     domain.SettingNewsStudio,
	Style:       domain.StyleCinematic,
	AspectRatio: domain.AspectLandscape,
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(context.Background(), Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSynthesizeImageSendsPhotoAndInstruction(t *testing.T) {
	var captured map[string]any
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[`+
			`{"text":"here you go"},`+
			`{"inlineData":{"mimeType":"image/png","data":"`+base64.StdEncoding.EncodeToString([]byte("portrait"))+`"}}]}}]}`)
	})

	img, err := client.SynthesizeImage(context.Background(), domain.SourceImage{Data: []byte("selfie"), MIMEType: "image/jpeg"}, testOptions)
	if err != nil {
		t.Fatalf("SynthesizeImage: %v", err)
	}
	if !bytes.Equal(img.Data, []byte("portrait")) {
		t.Fatalf("image data = %q", img.Data)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("mime = %q", img.MIMEType)
	}
	if !strings.HasSuffix(path, "models/"+DefaultModel+":generateContent") {
		t.Fatalf("unexpected path %q", path)
	}

	raw, _ := json.Marshal(captured)
	payload := string(raw)
	for _, want := range []string{
		base64.StdEncoding.EncodeToString([]byte("selfie")),
		"image/jpeg",
		"News Studio",
		"Cinematic",
		`"aspectRatio":"16:9"`,
	} {
		if !strings.Contains(payload, want) {
			t.Fatalf("request payload missing %q: %s", want, payload)
		}
	}
}

func TestSynthesizeImageMissingKey(t *testing.T) {
	client, err := NewClient(context.Background(), Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.HasCredentials() {
		t.Fatalf("client without key must not report credentials")
	}
	_, err = client.SynthesizeImage(context.Background(), domain.SourceImage{Data: []byte{1}}, testOptions)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}

func TestSynthesizeImageRemoteFailure(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"image rejected","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := client.SynthesizeImage(context.Background(), domain.SourceImage{Data: []byte{1}}, testOptions)
	if !errors.Is(err, domain.ErrSynthesis) {
		t.Fatalf("error = %v, want synthesis error", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want exactly one attempt", calls.Load())
	}
}

func TestSynthesizeImageWithoutImagePart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"I cannot do that"}]}}]}`)
	})

	_, err := client.SynthesizeImage(context.Background(), domain.SourceImage{Data: []byte{1}}, testOptions)
	if !errors.Is(err, domain.ErrSynthesis) {
		t.Fatalf("error = %v, want synthesis error", err)
	}
	if !strings.Contains(err.Error(), "I cannot do that") {
		t.Fatalf("error should carry the model text, got %v", err)
	}
}

func TestSynthesizeImageEmptySource(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	_, err := client.SynthesizeImage(context.Background(), domain.SourceImage{}, testOptions)
	if !errors.Is(err, domain.ErrSynthesis) || !errors.Is(err, domain.ErrEmptyImage) {
		t.Fatalf("error = %v, want synthesis error for empty source", err)
	}
}
