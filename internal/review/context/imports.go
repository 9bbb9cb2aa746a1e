package context

import "strings"

// containsImportLike reports whether s mentions an import/include/using
// construct in any of the languages the extractor recognizes. Permissive
// and language-agnostic by design.
func containsImportLike(s string) bool {
	return strings.Contains(s, "import ") ||
		strings.Contains(s, "#include") ||
		strings.Contains(s, " include ") ||
		strings.Contains(s, " using ") ||
		strings.Contains(s, " from ") ||
		strings.Contains(s, " require(") ||
		strings.Contains(s, "\nuse ")
}

func isImportLikeLine(s string) bool {
	trimmed := strings.TrimLeft(s, " \t")
	switch {
	case strings.HasPrefix(trimmed, "import "),
		strings.HasPrefix(trimmed, "include "),
		strings.HasPrefix(trimmed, "#include"),
		strings.HasPrefix(trimmed, "using "),
		strings.HasPrefix(trimmed, "use "),
		strings.HasPrefix(trimmed, "require("),
		strings.HasPrefix(trimmed, "from "):
		return true
	}
	return strings.Contains(trimmed, " import ")
}

// ExtractImportsBlock returns the contiguous import/include/use block found
// at the top of code, for use as a type-resolution hint when the anchor is
// not near the top of the file but still needs to know what's imported
// (spec supplement, grounded on the original's import-section scanning).
func ExtractImportsBlock(code string) string {
	lines := strings.Split(code, "\n")
	var block []string
	seenImport := false
	gapSinceImport := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case isImportLikeLine(line):
			block = append(block, line)
			seenImport = true
			gapSinceImport = 0
		case trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#!") || strings.HasPrefix(trimmed, "/*"):
			if seenImport {
				gapSinceImport++
				if gapSinceImport > 1 {
					return strings.Join(block, "\n")
				}
			}
		default:
			if seenImport {
				return strings.Join(block, "\n")
			}
			// non-import, non-comment line before any import seen: the file
			// has no leading import block worth extracting.
			return strings.Join(block, "\n")
		}
	}
	return strings.Join(block, "\n")
}
