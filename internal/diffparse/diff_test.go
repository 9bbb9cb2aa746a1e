package diffparse

import "testing"

const sampleDiff = `--- a/main.go
+++ b/main.go
@@ -10,3 +10,4 @@ func main() {
 	x := 1
-	y := 2
+	y := 3
+	z := 4
 	fmt.Println(x)
`

func TestParseUnifiedDiffMonotonicLines(t *testing.T) {
	fd, err := ParseUnifiedDiff(sampleDiff)
	if err != nil {
		t.Fatal(err)
	}
	if fd.IsBinary {
		t.Fatal("expected non-binary")
	}
	if len(fd.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(fd.Hunks))
	}
	h := fd.Hunks[0]

	var oldSeen, newSeen []int
	for _, l := range h.Lines {
		if l.OldLine != 0 {
			oldSeen = append(oldSeen, l.OldLine)
		}
		if l.NewLine != 0 {
			newSeen = append(newSeen, l.NewLine)
		}
	}
	for i := 1; i < len(oldSeen); i++ {
		if oldSeen[i] < oldSeen[i-1] {
			t.Fatalf("old-side line numbers not monotonic: %v", oldSeen)
		}
	}
	for i := 1; i < len(newSeen); i++ {
		if newSeen[i] < newSeen[i-1] {
			t.Fatalf("new-side line numbers not monotonic: %v", newSeen)
		}
	}

	added := fd.AddedLines()
	if len(added) != 2 || added[0] != 11 || added[1] != 12 {
		t.Fatalf("unexpected added lines: %v", added)
	}
}

func TestParseUnifiedDiffBinary(t *testing.T) {
	fd, err := ParseUnifiedDiff("Binary files a/img.png and b/img.png differ\n")
	if err != nil {
		t.Fatal(err)
	}
	if !fd.IsBinary {
		t.Fatal("expected binary detection")
	}
	if len(fd.Hunks) != 0 {
		t.Fatal("expected zero hunks for binary patch")
	}
}
