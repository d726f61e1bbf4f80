// Package geoip maps client addresses to ISO country codes for request logs.
package geoip

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// cacheLimit bounds the per-process lookup cache; it is reset when full.
const cacheLimit = 4096

// Resolver looks up countries in a MaxMind GeoIP2 or GeoLite2 database.
type Resolver struct {
	reader *geoip2.Reader

	mu    sync.RWMutex
	cache map[string]string
}

// Open loads the database at path. An empty path yields a nil resolver,
// which answers every lookup with "".
func Open(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, cache: make(map[string]string)}, nil
}

// Country returns the ISO code for ip, or "" when it is unknown or invalid.
func (r *Resolver) Country(ip string) string {
	if r == nil || r.reader == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	r.mu.RLock()
	code, ok := r.cache[ip]
	r.mu.RUnlock()
	if ok {
		return code
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if record, err := r.reader.Country(parsed); err == nil && record != nil {
		code = record.Country.IsoCode
	}

	r.mu.Lock()
	if len(r.cache) >= cacheLimit {
		r.cache = make(map[string]string)
	}
	r.cache[ip] = code
	r.mu.Unlock()
	return code
}

func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
