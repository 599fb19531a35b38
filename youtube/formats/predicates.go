// Package formats turns the stream entries of a player payload into
// fetchable URLs.
package formats

import (
	"strings"

	"github.com/ytget/ytlinks/types"
)

// hasDirectURL returns true when the entry already contains a resolvable URL.
// Entries without direct URLs need signature decoding.
func hasDirectURL(e types.RawFormatEntry) bool {
	return strings.TrimSpace(e.URL) != ""
}
