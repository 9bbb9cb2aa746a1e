package model

import "testing"

func TestComputeChunkIDChangesWithAnyComponent(t *testing.T) {
	base := ComputeChunkID("a.go", "a.go::Foo", 10, 20)

	cases := []struct {
		name                               string
		file, symbolPath                   string
		startByte, endByte                 int
	}{
		{"file", "b.go", "a.go::Foo", 10, 20},
		{"symbolPath", "a.go", "a.go::Bar", 10, 20},
		{"startByte", "a.go", "a.go::Foo", 11, 20},
		{"endByte", "a.go", "a.go::Foo", 10, 21},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id := ComputeChunkID(c.file, c.symbolPath, c.startByte, c.endByte)
			if id == base {
				t.Fatalf("expected id to change when %s differs", c.name)
			}
		})
	}

	same := ComputeChunkID("a.go", "a.go::Foo", 10, 20)
	if same != base {
		t.Fatalf("expected stable id for identical inputs")
	}
}

func TestBuildSymbolPathStartsWithFile(t *testing.T) {
	p := BuildSymbolPath("f.dart", []string{"A"}, "m")
	if p != "f.dart::A::m" {
		t.Fatalf("got %q", p)
	}
}

func TestSpanValid(t *testing.T) {
	s := Span{StartByte: 5, EndByte: 10}
	if !s.Valid(10) {
		t.Fatal("expected valid span")
	}
	if s.Valid(9) {
		t.Fatal("expected invalid span beyond file size")
	}
}
