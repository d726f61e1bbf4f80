// Package cache is the content-addressed artifact cache. An artifact is keyed
// by the unit that owns it and the fingerprint of its inputs, so a repeated
// request with identical inputs resolves to the stored object.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/storage"
)

// CharactersScope replaces the scene segment for character artifacts.
const CharactersScope = "characters"

// Key locates one cached artifact.
type Key struct {
	Namespace   string
	ProjectID   string
	SceneID     string
	UnitID      string
	Fingerprint string
	Ext         string
}

// Path renders {namespace}/{project}/{scene|characters}/{unit}/{fingerprint}.{ext}.
func (k Key) Path() (string, error) {
	scope := k.SceneID
	if scope == "" {
		scope = CharactersScope
	}
	for _, part := range []string{k.Namespace, k.ProjectID, k.UnitID, k.Fingerprint, k.Ext} {
		if strings.TrimSpace(part) == "" || strings.ContainsAny(part, "/\\") {
			return "", fmt.Errorf("%w: incomplete cache key %+v", domain.ErrValidation, k)
		}
	}
	return path.Join(k.Namespace, k.ProjectID, scope, k.UnitID, k.Fingerprint+"."+k.Ext), nil
}

// Fingerprint hashes parts with a length prefix on each, so ("ab","c") and
// ("a","bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AudioFingerprint covers every input that changes synthesized speech.
func AudioFingerprint(text, voiceID, modelID string) string {
	return Fingerprint("audio", text, voiceID, modelID)
}

// ImageFingerprint covers every input that changes a rendered frame.
func ImageFingerprint(prompt, model, aspectRatio, visualStyle string) string {
	return Fingerprint("image", prompt, model, aspectRatio, visualStyle)
}

// Cache reads and writes artifacts through a blob store.
type Cache struct {
	store     storage.BlobStore
	namespace string
	logger    infra.Logger
}

func New(store storage.BlobStore, namespace string, logger infra.Logger) *Cache {
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	if namespace == "" {
		namespace = "storyboards"
	}
	return &Cache{store: store, namespace: namespace, logger: logger}
}

// Key builds a key in this cache's namespace.
func (c *Cache) Key(projectID, sceneID, unitID, fingerprint, ext string) Key {
	return Key{
		Namespace:   c.namespace,
		ProjectID:   projectID,
		SceneID:     sceneID,
		UnitID:      unitID,
		Fingerprint: fingerprint,
		Ext:         strings.TrimPrefix(ext, "."),
	}
}

// Lookup returns the stored URL and true on a hit.
func (c *Cache) Lookup(ctx context.Context, key Key) (string, bool, error) {
	p, err := key.Path()
	if err != nil {
		return "", false, err
	}
	url, ok, err := c.store.Exists(ctx, p)
	if err != nil {
		return "", false, fmt.Errorf("%w: cache lookup %s: %w", domain.ErrPersistence, p, err)
	}
	c.logger.Debug().Str("key", p).Bool("hit", ok).Msg("cache lookup")
	return url, ok, nil
}

// Store writes data under key and returns its URL.
func (c *Cache) Store(ctx context.Context, key Key, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: refusing to cache an empty artifact", domain.ErrValidation)
	}
	p, err := key.Path()
	if err != nil {
		return "", err
	}
	url, err := c.store.Put(ctx, p, data, contentType)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: cache store %s: %w", domain.ErrPersistence, p, err)
	}
	return url, nil
}
