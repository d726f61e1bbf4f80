package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

func TestSynthesizeRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/voice-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "xi" || r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("unexpected headers %v", r.Header)
		}
		var body elevenLabsRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Text != "Hello there" || body.ModelID != "m2" || body.VoiceSettings.Stability != 0.5 {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "xi", APIURL: srv.URL + "/tts", Logger: infra.NopLogger()})
	if c.ContentType() != ContentTypeMPEG {
		t.Fatalf("unexpected content type %s", c.ContentType())
	}
	audio, err := c.Synthesize(context.Background(), Request{Text: "Hello there", VoiceID: "voice-1", ModelID: "m2"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "ID3mp3" {
		t.Fatalf("unexpected audio %q", audio)
	}
}

func TestSynthesizeRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "xi", APIURL: srv.URL, Logger: infra.NopLogger()})
	if _, err := c.Synthesize(context.Background(), Request{Text: "hi", VoiceID: "nope"}); !errors.Is(err, domain.ErrUpstreamProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestSynthesizeSynthetic(t *testing.T) {
	c := NewClient(Options{Logger: infra.NopLogger()})
	if c.ContentType() != ContentTypeWAV {
		t.Fatalf("unexpected content type %s", c.ContentType())
	}
	a, err := c.Synthesize(context.Background(), Request{Text: "one two three four", VoiceID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.HasPrefix(a, []byte("RIFF")) || !bytes.Contains(a[:16], []byte("WAVE")) {
		t.Fatal("expected a wav header")
	}
	b, _ := c.Synthesize(context.Background(), Request{Text: "one two three four", VoiceID: "v"})
	if !bytes.Equal(a, b) {
		t.Fatal("synthetic audio must be deterministic")
	}
}

func TestSynthesizeValidation(t *testing.T) {
	c := NewClient(Options{Logger: infra.NopLogger()})
	if _, err := c.Synthesize(context.Background(), Request{Text: " ", VoiceID: "v"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.Synthesize(context.Background(), Request{Text: "hi"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
