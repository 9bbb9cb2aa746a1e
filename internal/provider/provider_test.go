package provider

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSplitOwnerRepoNumber(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		wantOwner string
		wantRepo  string
		wantNum   int
		wantErr   bool
	}{
		{name: "valid", id: "acme/widgets#42", wantOwner: "acme", wantRepo: "widgets", wantNum: 42},
		{name: "missing hash", id: "acme/widgets", wantErr: true},
		{name: "missing slash", id: "acmewidgets#42", wantErr: true},
		{name: "non numeric", id: "acme/widgets#abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, num, err := splitOwnerRepoNumber(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
			assert.Equal(t, tt.wantNum, num)
		})
	}
}

func TestSplitProjectMRIID(t *testing.T) {
	project, iid, err := splitProjectMRIID("group/subgroup/project!17")
	assert.NoError(t, err)
	assert.Equal(t, "group/subgroup/project", project)
	assert.Equal(t, 17, iid)

	_, _, err = splitProjectMRIID("no-bang-here")
	assert.Error(t, err)
}

func TestSplitWorkspaceRepoID(t *testing.T) {
	repoPath, num, err := splitWorkspaceRepoID("myteam/myrepo#9")
	assert.NoError(t, err)
	assert.Equal(t, "myteam/myrepo", repoPath)
	assert.Equal(t, 9, num)

	_, _, err = splitWorkspaceRepoID("no-hash-here")
	assert.Error(t, err)
}

const sampleBitbucketDiff = `diff --git a/main.go b/main.go
index abc123..def456 100644
--- a/main.go
+++ b/main.go
@@ -1,2 +1,3 @@
 package main
+import "fmt"
diff --git a/old.go b/old.go
deleted file mode 100644
index 789abc..0000000
--- a/old.go
+++ /dev/null
@@ -1,1 +0,0 @@
-package main
`

func TestSplitUnifiedDiffPerFile(t *testing.T) {
	changes := splitUnifiedDiffPerFile(sampleBitbucketDiff, discardLogger())
	assert.Len(t, changes, 2)
	assert.Equal(t, "main.go", changes[0].NewPath)
	assert.False(t, changes[0].IsDeleted)
	assert.Equal(t, "/dev/null", changes[1].NewPath)
	assert.True(t, changes[1].IsDeleted)
}
