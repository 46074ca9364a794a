package idgen

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerate_Shape(t *testing.T) {
	pattern := regexp.MustCompile(`^gt-[a-z0-9]{10}$`)
	for i := 0; i < 100; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Generate() = %q, want gt- followed by 10 lowercase alphanumerics", id)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	id, err := GenerateWithPrefix("seed-")
	if err != nil {
		t.Fatalf("GenerateWithPrefix error: %v", err)
	}
	if !strings.HasPrefix(id, "seed-") {
		t.Errorf("GenerateWithPrefix = %q, want prefix seed-", id)
	}
	if got, want := len(id), len("seed-")+Length; got != want {
		t.Errorf("length = %d, want %d", got, want)
	}
}
