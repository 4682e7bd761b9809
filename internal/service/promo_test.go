package service

import (
	"strings"
	"testing"
)

func TestHashCodeNormalization(t *testing.T) {
	base := HashCode("SUMMER2024")
	variants := []string{"summer2024", "Summer2024", "  SUMMER2024  ", "sUmMeR2024"}
	for _, v := range variants {
		if got := HashCode(v); got != base {
			t.Errorf("HashCode(%q) = %s, want %s", v, got, base)
		}
	}
}

func TestHashCodeShape(t *testing.T) {
	h := HashCode("welcome")
	if len(h) != 32 {
		t.Errorf("hash length = %d, want 32", len(h))
	}
	if h != strings.ToUpper(h) {
		t.Errorf("hash %q is not upper-cased", h)
	}
}

func TestHashCodeDistinguishesCodes(t *testing.T) {
	if HashCode("alpha") == HashCode("beta") {
		t.Error("different codes produced the same hash")
	}
}
