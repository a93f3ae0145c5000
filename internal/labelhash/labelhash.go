// Package labelhash fingerprints label sets for constant-time lookup of
// label combinations inside a metric family.
package labelhash

import (
	"bytes"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/kloudmate/openmetrics/pkg/encoding"
)

// Fingerprint returns the canonical text form of a label set and its xxhash.
// Two sets with the same fingerprint string encode identically in every
// format; the hash alone may collide, so lookups compare the string within
// one hash bucket.
func Fingerprint(set encoding.EncodeLabelSet) (string, uint64, error) {
	var buf bytes.Buffer
	digest := xxhash.New()
	if err := encoding.WriteLabelSet(io.MultiWriter(&buf, digest), set); err != nil {
		return "", 0, err
	}
	return buf.String(), digest.Sum64(), nil
}
