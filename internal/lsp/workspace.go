package lsp

import (
	"os"
	"path/filepath"
	"strings"
)

// manifestNames lists files whose presence marks a directory as a workspace
// root: any ancestor containing one of these counts, e.g. pubspec.yaml.
var manifestNames = []string{"pubspec.yaml", "go.mod", "package.json", "Cargo.toml", "pom.xml", "Gemfile"}

// ComputeWorkspaceFolders finds, for each target file, the nearest ancestor
// directory containing a manifest file, dedupes the results, and returns
// them as file:// URIs alongside the smallest common parent as rootURI.
func ComputeWorkspaceFolders(root string, targetFiles []string) (rootURI string, folderURIs []string) {
	seen := map[string]bool{}
	var folders []string
	for _, f := range targetFiles {
		dir := filepath.Dir(filepath.Join(root, f))
		for {
			if hasManifest(dir) {
				if !seen[dir] {
					seen[dir] = true
					folders = append(folders, dir)
				}
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir || !strings.HasPrefix(parent, root) {
				break
			}
			dir = parent
		}
	}
	if len(folders) == 0 {
		folders = []string{root}
	}
	for _, f := range folders {
		folderURIs = append(folderURIs, toFileURI(f))
	}
	return toFileURI(smallestCommonParent(folders)), folderURIs
}

func hasManifest(dir string) bool {
	for _, name := range manifestNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func smallestCommonParent(dirs []string) string {
	if len(dirs) == 0 {
		return ""
	}
	common := dirs[0]
	for _, d := range dirs[1:] {
		common = commonPrefixPath(common, d)
	}
	return common
}

func commonPrefixPath(a, b string) string {
	aParts := strings.Split(filepath.ToSlash(a), "/")
	bParts := strings.Split(filepath.ToSlash(b), "/")
	n := min(len(aParts), len(bParts))
	var common []string
	for i := 0; i < n; i++ {
		if aParts[i] != bParts[i] {
			break
		}
		common = append(common, aParts[i])
	}
	return strings.Join(common, "/")
}

func toFileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}
