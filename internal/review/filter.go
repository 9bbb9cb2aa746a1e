package review

import (
	"path/filepath"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/provider"
)

// nonReviewableExtensions contains file extensions that should not be
// code-reviewed: documentation, configuration, data, or binary files.
// Applied before the delta index is built, rather than as a post-hoc
// suggestion filter.
var nonReviewableExtensions = map[string]bool{
	// Documentation
	".md": true, ".markdown": true, ".rst": true, ".adoc": true,
	// Configuration
	".yml": true, ".yaml": true, ".json": true, ".jsonc": true,
	".toml": true, ".ini": true, ".cfg": true, ".conf": true,
	".env": true, ".editorconfig": true, ".gitignore": true,
	// Lock files
	".lock": true, ".sum": true,
	// Data files
	".txt": true, ".csv": true, ".xml": true,
	// Binary/Assets
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".ico": true, ".webp": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true,
	// Templates/Prompts
	".prompt": true, ".tmpl": true, ".mustache": true,
	// Generated/Minified
	".min.js": true, ".min.css": true,
}

// codeExtensions contains file extensions that are definitely code files.
// Files with these extensions will always be reviewed.
var codeExtensions = map[string]bool{
	".go": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".py": true, ".java": true, ".c": true, ".cpp": true, ".h": true,
	".hpp": true, ".rs": true, ".rb": true, ".php": true, ".cs": true,
	".swift": true, ".kt": true, ".scala": true, ".lua": true,
	".sh": true, ".bash": true, ".zsh": true, ".ps1": true,
	".sql": true, ".vue": true, ".svelte": true,
}

// filterReviewableChanges drops changed files that aren't worth running
// through the pipeline (docs, config, locks, binaries) before the delta
// index is built.
func filterReviewableChanges(changes []provider.ChangeMeta) []provider.ChangeMeta {
	out := make([]provider.ChangeMeta, 0, len(changes))
	for _, c := range changes {
		if c.IsBinary {
			continue
		}
		if isReviewableFile(c.NewPath) {
			out = append(out, c)
		}
	}
	return out
}

// isReviewableFile determines if a file should be code-reviewed.
// Returns true for code files and files without recognized extensions.
// Returns false for documentation, config, data, and binary files.
func isReviewableFile(path string) bool {
	path = strings.ToLower(path)
	path = strings.TrimPrefix(path, "./")

	// Compound extensions take precedence over simple ones.
	if strings.HasSuffix(path, ".min.js") ||
		strings.HasSuffix(path, ".min.css") ||
		strings.HasSuffix(path, ".d.ts") {
		return false
	}

	ext := filepath.Ext(path)

	if codeExtensions[ext] {
		return true
	}

	if ext == "" {
		base := filepath.Base(path)
		switch base {
		case "makefile", "dockerfile", "rakefile", "gemfile", "procfile":
			return false
		}
		// Unknown extensionless file - could be a script, err on reviewing it.
		return true
	}

	if nonReviewableExtensions[ext] {
		return false
	}

	// Unknown extension - err on the side of reviewing (catches .proto, .graphql, etc).
	return true
}
