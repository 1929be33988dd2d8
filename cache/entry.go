package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/derw/compiler/hash"
)

// FormatVersion is mixed into every key. Bump it whenever generator output
// changes so stale entries stop matching.
const FormatVersion = "derw-cache-1"

// Entry is the cached result of compiling one source text to one target.
type Entry struct {
	Target  string   `cbor:"1,keyasint"`
	Output  string   `cbor:"2,keyasint"`
	Errors  []string `cbor:"3,keyasint,omitempty"`
	Imports []string `cbor:"4,keyasint,omitempty"` // non-global import paths, as written
}

// Key derives the cache key for compiling source, registered under the
// module name, to target. Elm output embeds the name, so it is part of the key.
func Key(source, target, name string) hash.Digest {
	return hash.Sum(FormatVersion, target, name, source)
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalEntry serializes an Entry to canonical CBOR bytes.
func MarshalEntry(e *Entry) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEntry deserializes an Entry from CBOR bytes.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cache: unmarshal entry: %w", err)
	}
	return &e, nil
}
