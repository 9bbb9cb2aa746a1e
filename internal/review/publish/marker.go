// Package publish posts deduped draft comments through a provider.Client,
// enforcing idempotency via a hidden HTML-comment marker and bounding
// concurrency and retries.
package publish

import (
	"fmt"
	"regexp"

	"github.com/corvid-labs/mrsentry/internal/model"
)

// markerRe matches `<!-- mrai:key=<path>:<line>|<kind>;hash=<snippet_hash>;ver=1 -->`.
var markerRe = regexp.MustCompile(`<!--\s*mrai:key=([^|]+)\|([a-z]+);hash=([0-9a-f]+);ver=1\s*-->`)

// Key identifies one logical comment slot, independent of its content hash.
type Key struct {
	PathLine string // "<path>:<line>"
	Kind     string
}

// Marker renders the hidden idempotency marker embedded in a published
// comment's body.
func Marker(target model.TargetRef, snippetHash string) string {
	return fmt.Sprintf("<!-- mrai:key=%s:%d|%s;hash=%s;ver=1 -->", target.Path, target.AnchorLine(), target.Kind, snippetHash)
}

// ParseMarker extracts the key and hash from a comment body, if present.
func ParseMarker(body string) (key Key, hash string, ok bool) {
	m := markerRe.FindStringSubmatch(body)
	if m == nil {
		return Key{}, "", false
	}
	return Key{PathLine: m[1], Kind: m[2]}, m[3], true
}

// KeyFor builds the Key for a target, matching what Marker embeds.
func KeyFor(target model.TargetRef) Key {
	return Key{PathLine: fmt.Sprintf("%s:%d", target.Path, target.AnchorLine()), Kind: string(target.Kind)}
}
