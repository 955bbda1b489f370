package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultImageMIME = "image/png"
	DefaultAudioMIME = "audio/mpeg"
)

// SourceImage is the captured visitor photo.
type SourceImage struct {
	Data     []byte
	MIMEType string
}

func (s SourceImage) Empty() bool { return len(s.Data) == 0 }

func (s SourceImage) DataURI() string { return dataURI(s.MIMEType, DefaultImageMIME, s.Data) }

// GeneratedImage is the stylized portrait produced by the image stage.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

func (g GeneratedImage) Empty() bool { return len(g.Data) == 0 }

func (g GeneratedImage) DataURI() string { return dataURI(g.MIMEType, DefaultImageMIME, g.Data) }

// Audio is the synthesized speech. It only lives between the speech and the
// video stage and is never part of a session snapshot.
type Audio struct {
	Data     []byte
	MIMEType string
}

func (a Audio) DataURI() string { return dataURI(a.MIMEType, DefaultAudioMIME, a.Data) }

// VideoReference locates the finished video at the provider.
type VideoReference string

func dataURI(mime, fallback string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if strings.TrimSpace(mime) == "" {
		mime = fallback
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI. A bare base64 payload is accepted
// too and gets the fallback mime type.
func ParseDataURI(raw, fallbackMIME string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", errors.New("empty payload")
	}
	mime := fallbackMIME
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, body, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, "", errors.New("malformed data uri")
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("data uri must be base64 encoded")
		}
		if m := strings.TrimSuffix(meta, ";base64"); m != "" {
			mime = m
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty payload")
	}
	return data, mime, nil
}
