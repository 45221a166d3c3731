package config

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint hashes an ordered list of named inputs. Each name and its
// content are length-prefixed so that moving bytes between inputs changes
// the result.
type Fingerprint struct {
	h *blake3.Hasher
}

// NewFingerprint starts an empty fingerprint.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: blake3.New()}
}

// Add mixes one named input into the fingerprint.
func (f *Fingerprint) Add(name string, content []byte) {
	fmt.Fprintf(f.h, "%d:%s\n%d:", len(name), name, len(content))
	_, _ = f.h.Write(content)
	_, _ = f.h.Write([]byte{'\n'})
}

// Sum returns the fingerprint as "blake3:<hex>".
func (f *Fingerprint) Sum() string {
	return "blake3:" + hex.EncodeToString(f.h.Sum(nil))
}
