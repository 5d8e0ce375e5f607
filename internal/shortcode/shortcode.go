// Package shortcode encodes store-assigned identifiers into short, URL-safe
// codes using positional base62. Encoding is injective, so two distinct ids
// can never produce the same code.
package shortcode

import "strings"

// alphabet order is fixed: it affects the shape of generated codes, so
// changing it would silently remap every existing short code.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = int64(len(alphabet))

// Encode converts a positive identifier into its base62 representation.
// It panics on non-positive input: ids come from the store's sequence and
// anything else is a programming error.
func Encode(id int64) string {
	if id <= 0 {
		panic("shortcode: id must be positive")
	}

	var sb strings.Builder
	for id > 0 {
		sb.WriteByte(alphabet[id%base])
		id /= base
	}

	b := []byte(sb.String())
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}

	return string(b)
}
