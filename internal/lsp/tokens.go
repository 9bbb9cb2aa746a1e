package lsp

import "unicode/utf16"

// Token is one absolute semantic token after delta-decoding: a
// (line, startCharUTF16, lengthUTF16, tokenTypeIndex) tuple plus the
// resolved byte span once mapped against the file's source.
type Token struct {
	Line          int
	StartCharUTF16 int
	LengthUTF16   int
	TypeIndex     int
	StartByte     int
	EndByte       int
}

// DecodeSemanticTokens turns the LSP relative-delta data array into
// absolute (line, startChar, length, type) tuples. Each token is 5
// uint32s: deltaLine, deltaStartChar, length, tokenType, tokenModifiers
// (ignored here).
func DecodeSemanticTokens(data []uint32) []Token {
	var out []Token
	line, char := 0, 0
	for i := 0; i+5 <= len(data); i += 5 {
		deltaLine := int(data[i])
		deltaChar := int(data[i+1])
		length := int(data[i+2])
		typeIdx := int(data[i+3])

		if deltaLine > 0 {
			line += deltaLine
			char = deltaChar
		} else {
			char += deltaChar
		}
		out = append(out, Token{Line: line, StartCharUTF16: char, LengthUTF16: length, TypeIndex: typeIdx})
	}
	return out
}

// ResolveByteOffsets maps each token's UTF-16 (line, char) start/end into
// UTF-8 byte offsets by scanning lines. lines must be split on '\n'
// without trailing newline characters.
func ResolveByteOffsets(tokens []Token, lines []string, lineByteOffsets []int) {
	for i := range tokens {
		t := &tokens[i]
		if t.Line < 0 || t.Line >= len(lines) {
			continue
		}
		lineText := lines[t.Line]
		startByte := utf16ColToByteOffset(lineText, t.StartCharUTF16)
		endByte := utf16ColToByteOffset(lineText, t.StartCharUTF16+t.LengthUTF16)
		base := 0
		if t.Line < len(lineByteOffsets) {
			base = lineByteOffsets[t.Line]
		}
		t.StartByte = base + startByte
		t.EndByte = base + endByte
	}
}

// LineByteOffsets precomputes the byte offset of the start of each line in
// source, so ResolveByteOffsets doesn't re-scan from the top per token.
func LineByteOffsets(source []byte) []int {
	offsets := []int{0}
	for i, b := range source {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// utf16ColToByteOffset converts a UTF-16 code-unit column within line into
// a UTF-8 byte offset within the same line, per the editor convention the
// LSP spec assumes.
func utf16ColToByteOffset(line string, utf16Col int) int {
	units := utf16.Encode([]rune(line))
	if utf16Col > len(units) {
		utf16Col = len(units)
	}
	runes := utf16.Decode(units[:utf16Col])
	byteLen := 0
	for _, r := range runes {
		byteLen += len(string(r))
	}
	return byteLen
}

// Histogram builds a per-legend-name token count from decoded tokens.
func Histogram(tokens []Token, legend []string) map[string]int {
	hist := make(map[string]int)
	for _, t := range tokens {
		name := "unknown"
		if t.TypeIndex >= 0 && t.TypeIndex < len(legend) {
			name = legend[t.TypeIndex]
		}
		hist[name]++
	}
	return hist
}

// TopRatios converts a histogram into the top-K type fractions of the
// total token count.
func TopRatios(hist map[string]int, topK int) map[string]float64 {
	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return nil
	}
	type kv struct {
		name  string
		count int
	}
	var kvs []kv
	for name, count := range hist {
		kvs = append(kvs, kv{name, count})
	}
	for i := 0; i < len(kvs); i++ {
		for j := i + 1; j < len(kvs); j++ {
			if kvs[j].count > kvs[i].count {
				kvs[i], kvs[j] = kvs[j], kvs[i]
			}
		}
	}
	if len(kvs) > topK {
		kvs = kvs[:topK]
	}
	out := make(map[string]float64, len(kvs))
	for _, e := range kvs {
		out[e.name] = float64(e.count) / float64(total)
	}
	return out
}

// TokensOverlapping returns the subset of tokens whose byte span overlaps
// [startByte, endByte), used to build a per-chunk semantic histogram (spec
// §4.3 step 7).
func TokensOverlapping(tokens []Token, startByte, endByte int) []Token {
	var out []Token
	for _, t := range tokens {
		if t.StartByte < endByte && t.EndByte > startByte {
			out = append(out, t)
		}
	}
	return out
}
