package dedup

import (
	"hash/fnv"
	"math/bits"
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[A-Za-z0-9]{3,}`)

// tokenize lowercases and keeps alphanumeric runs of length >= 3, per spec
// §4.10 step 4 "tokenized trigrams (tokens ≥3 chars, alphanumeric)".
func tokenize(s string) []string {
	matches := tokenRe.FindAllString(s, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.ToLower(m)
	}
	return out
}

// trigrams slides a window of 3 over tokens; texts shorter than 3 tokens
// fall back to the tokens themselves so short bodies still hash.
func trigrams(tokens []string) []string {
	if len(tokens) < 3 {
		return tokens
	}
	out := make([]string, 0, len(tokens)-2)
	for i := 0; i+3 <= len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1]+" "+tokens[i+2])
	}
	return out
}

// SimHash64 computes a 64-bit SimHash over text's tokenized trigrams, used
// to drop near-identical drafts within a theme cluster.
func SimHash64(text string) uint64 {
	features := trigrams(tokenize(text))
	if len(features) == 0 {
		return 0
	}

	var weights [64]int
	for _, f := range features {
		h := fnv64a(f)
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var out uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			out |= 1 << uint(bit)
		}
	}
	return out
}

func fnv64a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Hamming returns the number of differing bits between a and b.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
