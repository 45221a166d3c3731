package config

import (
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	sum := func(parts ...[2]string) string {
		f := NewFingerprint()
		for _, p := range parts {
			f.Add(p[0], []byte(p[1]))
		}
		return f.Sum()
	}

	a := sum([2]string{"timer", "abc"}, [2]string{"app", "def"})
	if !strings.HasPrefix(a, "blake3:") {
		t.Fatalf("fingerprint %q lacks prefix", a)
	}
	if a != sum([2]string{"timer", "abc"}, [2]string{"app", "def"}) {
		t.Error("fingerprint is not deterministic")
	}
	if a == sum([2]string{"timer", "ab"}, [2]string{"app", "cdef"}) {
		t.Error("moving bytes between inputs must change the fingerprint")
	}
	if a == sum([2]string{"app", "def"}, [2]string{"timer", "abc"}) {
		t.Error("input order must matter")
	}
}
