// Package dedup implements the duplicate-detection core of the plate
// subsystem: per-type identifier normalization, title/geo similarity
// primitives, and the detector that classifies a candidate save as an exact
// duplicate, a likely duplicate, or novel.
//
// Everything in this package is synchronous and deterministic. The only I/O
// happens in the Detector, which reads the caller's saved items through the
// narrow Store interface.
package dedup

import (
	"regexp"
	"strings"

	"github.com/plateful/plate-backend/internal/domain"
)

// videoIDRE extracts the video identifier from the URL shapes users paste:
// ...watch?v=ID, youtu.be/ID, and .../embed/ID.
var videoIDRE = regexp.MustCompile(`(?:watch\?v=|youtu\.be/|/embed/)([A-Za-z0-9_-]+)`)

// nonDigitRE matches everything that is not an ASCII digit.
var nonDigitRE = regexp.MustCompile(`\D+`)

// NormalizeItemID canonicalizes an external identifier so that
// format-incidental variants (a share URL versus a bare id, stray whitespace,
// tracking query strings) collapse to the same stored key.
//
// Rules per item type:
//   - recipe: external recipe ids are numeric; strip every non-digit.
//   - restaurant: place ids are case- and space-insensitive in practice;
//     lowercase and remove all whitespace.
//   - video: extract the id from known video-URL shapes, otherwise pass the
//     value through unchanged.
//   - photo: drop any query string and fragment suffix.
//   - other: pass through trimmed.
//
// The function is total and best-effort: malformed input still yields a
// string, and normalizing an already-normalized id is a no-op.
func NormalizeItemID(t domain.ItemType, rawID string) string {
	switch t {
	case domain.ItemTypeRecipe:
		return nonDigitRE.ReplaceAllString(rawID, "")
	case domain.ItemTypeRestaurant:
		return strings.Join(strings.Fields(strings.ToLower(rawID)), "")
	case domain.ItemTypeVideo:
		if m := videoIDRE.FindStringSubmatch(rawID); m != nil {
			return m[1]
		}
		return rawID
	case domain.ItemTypePhoto:
		id := rawID
		if i := strings.IndexAny(id, "?#"); i >= 0 {
			id = id[:i]
		}
		return id
	default:
		return strings.TrimSpace(rawID)
	}
}
