package util

import "testing"

func TestGenerateCollectionName(t *testing.T) {
	got := GenerateCollectionName("Acme/Widgets", "text-embedding-3-small")
	want := "repo-acme-widgets-text-embedding-3-small"
	if got != want {
		t.Errorf("GenerateCollectionName() = %q, want %q", got, want)
	}
}

func TestGenerateCollectionName_StripsEmbedderTag(t *testing.T) {
	got := GenerateCollectionName("owner/repo", "nomic-embed-text:latest")
	want := "repo-owner-repo-nomic-embed-text"
	if got != want {
		t.Errorf("GenerateCollectionName() = %q, want %q", got, want)
	}
}
