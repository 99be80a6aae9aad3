package graph

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// HashMode selects how requirement content hashes are computed. The two
// modes are not interchangeable; callers must pick one explicitly.
type HashMode string

const (
	// HashNormalized hashes the ordered (label, text) assertion pairs.
	// This is the default: it is stable under whitespace and prose edits
	// that do not touch the assertions themselves.
	HashNormalized HashMode = "normalized"

	// HashFullText hashes the raw requirement body.
	HashFullText HashMode = "full-text"
)

// RequirementHash computes the content hash of a requirement under the
// given mode. Assertions must be in label order.
func RequirementHash(mode HashMode, body string, assertions []*Node) string {
	h := blake3.New(32, nil)
	switch mode {
	case HashFullText:
		h.Write([]byte(body))
	default:
		for _, a := range assertions {
			if a.Assertion == nil {
				continue
			}
			h.Write([]byte(a.Assertion.Label))
			h.Write([]byte{0})
			h.Write([]byte(a.Assertion.Text))
			h.Write([]byte{1})
		}
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
