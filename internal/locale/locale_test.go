package locale

import "testing"

func TestMessage(t *testing.T) {
	tr, err := New("de")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		lang string
		id   string
		want string
	}{
		{lang: "de", id: ImageFailed, want: "Bildgenerierung fehlgeschlagen."},
		{lang: "de", id: VideoFailed, want: "Video Generierung fehlgeschlagen."},
		{lang: "en", id: ImageFailed, want: "Image generation failed."},
		{lang: "", id: VideoFailed, want: "Video Generierung fehlgeschlagen."},
		{lang: "fr", id: ImageFailed, want: "Bildgenerierung fehlgeschlagen."},
		{lang: "de", id: "no_such_message", want: "no_such_message"},
	}
	for _, tc := range tests {
		if got := tr.Message(tc.lang, tc.id); got != tc.want {
			t.Errorf("Message(%q, %q) = %q, want %q", tc.lang, tc.id, got, tc.want)
		}
	}
}

func TestMatch(t *testing.T) {
	tr, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Default() != "en" {
		t.Fatalf("Default() = %q", tr.Default())
	}

	tests := map[string]string{
		"de-DE,de;q=0.9,en;q=0.8": "de",
		"en-US":                   "en",
		"de-AT":                   "de",
		"":                        "en",
		"ja":                      "en",
	}
	for accept, want := range tests {
		if got := tr.Match(accept); got != want {
			t.Errorf("Match(%q) = %q, want %q", accept, got, want)
		}
	}
}
