package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

const countryKey contextKey = "country"

// CountryLookup resolves a client address to an ISO country code.
type CountryLookup interface {
	Country(ip string) string
}

// Country tags the request context and its logger with the client country.
// It expects RealIP to have run first.
func Country(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := lookup.Country(r.RemoteAddr)
			if code == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), countryKey, code)
			if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
				l.UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("country", code)
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryKey).(string); ok {
		return v
	}
	return ""
}
