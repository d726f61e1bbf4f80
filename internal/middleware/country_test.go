package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fixedCountry map[string]string

func (f fixedCountry) Country(ip string) string {
	return f[ip]
}

func TestCountryTagsContextAndLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	lookup := fixedCountry{"203.0.113.7:4000": "ID"}

	var seen string
	h := RequestID(base)(Country(lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CountryFromContext(r.Context())
		LoggerFromContext(r.Context(), base).Info().Msg("inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "ID" {
		t.Fatalf("expected country ID, got %q", seen)
	}
	if !strings.Contains(buf.String(), `"country":"ID"`) {
		t.Fatalf("log line missing country: %s", buf.String())
	}
}

func TestCountryUnknownLeavesRequestAlone(t *testing.T) {
	h := Country(fixedCountry{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := CountryFromContext(r.Context()); c != "" {
			t.Fatalf("unexpected country %q", c)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
