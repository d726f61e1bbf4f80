package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

func TestGenerateImageSyntheticWithoutKey(t *testing.T) {
	c := NewClient(Options{Logger: infra.NopLogger()})
	a, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a lighthouse", AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !a.Synthetic || a.Width != 1920 || a.Height != 1080 || len(a.Data) == 0 {
		t.Fatalf("unexpected synthetic asset: synthetic=%v %dx%d", a.Synthetic, a.Width, a.Height)
	}
	b, _ := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a lighthouse", AspectRatio: "16:9"})
	if string(a.Data) != string(b.Data) {
		t.Fatal("synthetic output must be deterministic")
	}
}

func TestGenerateTextRequiresKey(t *testing.T) {
	c := NewClient(Options{Logger: infra.NopLogger()})
	if _, err := c.GenerateText(context.Background(), TextRequest{Prompt: "hi"}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestGenerateTextRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("missing api key")
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body geminiGenerateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.GenerationConfig == nil || body.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("expected json response mime type")
		}
		if body.SystemInstruction == nil || body.SystemInstruction.Parts[0].Text != "be brief" {
			t.Errorf("expected system instruction")
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"title\":"},{"text":"\"Dawn\"}"}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL, Logger: infra.NopLogger()})
	text, err := c.GenerateText(context.Background(), TextRequest{System: "be brief", Prompt: "title", JSON: true})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != `{"title":"Dawn"}` {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestGenerateImageRemote(t *testing.T) {
	pixel := renderSyntheticImage(4, 4, "abcdef012345", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": "here you go"},
					map[string]any{"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(pixel)}},
				}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL, Logger: infra.NopLogger()})
	a, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "frame", AspectRatio: "1:1"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if a.Synthetic || a.Format != "image/png" || a.Width != 4 {
		t.Fatalf("unexpected asset %+v", a)
	}
}

func TestProviderErrorIsNotMasked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted"}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL, Logger: infra.NopLogger()})
	_, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "frame"})
	if !errors.Is(err, domain.ErrUpstreamProvider) || !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("expected provider error with message, got %v", err)
	}
}

func TestNormalizeAspect(t *testing.T) {
	cases := map[string][2]int{
		"16:9": {1920, 1080},
		"9:16": {1080, 1920},
		"":     {1024, 1024},
		"2:1":  {1024, 512},
		"junk": {1024, 1024},
	}
	for in, want := range cases {
		w, h := normalizeAspect(in)
		if w != want[0] || h != want[1] {
			t.Fatalf("%q: expected %v, got %dx%d", in, want, w, h)
		}
	}
}
