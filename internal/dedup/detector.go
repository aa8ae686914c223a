package dedup

import (
	"context"
	"errors"
	"sort"

	"github.com/plateful/plate-backend/internal/domain"
)

// ErrNotFound is returned by Store implementations when no saved item matches
// an exact-key lookup.
var ErrNotFound = errors.New("saved item not found")

// Store is the narrow persistence contract the detector needs. All lookups are
// scoped to a single owner; implementations must never return another user's
// rows.
type Store interface {
	// GetByKey fetches the owner's saved item with the exact
	// (item_type, item_id) key, or ErrNotFound.
	GetByKey(ctx context.Context, ownerID string, t domain.ItemType, itemID string) (*domain.SavedItem, error)

	// ListByType returns all of the owner's saved items of one type.
	ListByType(ctx context.Context, ownerID string, t domain.ItemType) ([]domain.SavedItem, error)
}

// CheckResult classifies a candidate save against the owner's existing items.
// It is computed per request and never persisted.
type CheckResult struct {
	// ExactDuplicate is the item sharing the same normalized
	// (owner, type, id) key, when one exists.
	ExactDuplicate *domain.SavedItem `json:"exact_duplicate,omitempty"`

	// SimilarItems are same-type items judged likely the same real-world
	// thing, ordered by descending similarity.
	SimilarItems []domain.SavedItem `json:"similar_items"`

	// ShouldWarn is true when similar items were found but no exact duplicate:
	// the caller should offer a "save anyway" confirmation. An exact duplicate
	// never warns — the item is simply already saved.
	ShouldWarn bool `json:"should_warn"`
}

// Detector classifies candidate saves. It is stateless and safe for
// concurrent use.
type Detector struct {
	store Store
}

// NewDetector constructs a Detector over the given store.
func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// Check runs the duplicate classification for a candidate save.
//
// The candidate id is normalized first; an exact-key hit short-circuits with
// no similarity scan and no warning. Otherwise the owner's items of the same
// type are scored with the per-type policy:
//
//   - recipe: title similarity >= threshold
//   - restaurant: title similarity > threshold, or venue proximity within the
//     meter threshold when both sides carry coordinates
//   - photo, video, other: exact-key detection only
//
// Only the caller's own items are ever considered. The error return is
// reserved for persistence failures.
func (d *Detector) Check(ctx context.Context, ownerID string, t domain.ItemType, rawID string, candidate domain.Metadata) (*CheckResult, error) {
	normalized := NormalizeItemID(t, rawID)

	existing, err := d.store.GetByKey(ctx, ownerID, t, normalized)
	if err == nil {
		return &CheckResult{ExactDuplicate: existing, SimilarItems: []domain.SavedItem{}}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	res := &CheckResult{SimilarItems: []domain.SavedItem{}}
	if t != domain.ItemTypeRecipe && t != domain.ItemTypeRestaurant {
		return res, nil
	}

	items, err := d.store.ListByType(ctx, ownerID, t)
	if err != nil {
		return nil, err
	}

	type scored struct {
		item  domain.SavedItem
		score float64
	}
	var similar []scored
	for _, item := range items {
		if s, ok := d.similarity(t, candidate, item); ok {
			similar = append(similar, scored{item: item, score: s})
		}
	}
	sort.SliceStable(similar, func(i, j int) bool { return similar[i].score > similar[j].score })

	for _, s := range similar {
		res.SimilarItems = append(res.SimilarItems, s.item)
	}
	res.ShouldWarn = len(res.SimilarItems) > 0
	return res, nil
}

// similarity applies the per-type fuzzy test between the candidate metadata
// and one existing item. The returned score orders matches; proximity-only
// restaurant matches are ranked by closeness within [0,1].
func (d *Detector) similarity(t domain.ItemType, candidate domain.Metadata, item domain.SavedItem) (float64, bool) {
	meta, err := domain.DecodeMetadata(item.ItemType, item.Metadata)
	if err != nil {
		// Undecodable stored metadata falls back to exact-only detection.
		return 0, false
	}

	candTitle, candHasTitle := domain.Title(candidate)
	itemTitle, itemHasTitle := domain.Title(meta)

	switch t {
	case domain.ItemTypeRecipe:
		if candHasTitle && itemHasTitle {
			if s := TitleSimilarity(candTitle, itemTitle); s >= TitleSimilarityThreshold {
				return s, true
			}
		}
	case domain.ItemTypeRestaurant:
		if candHasTitle && itemHasTitle {
			if s := TitleSimilarity(candTitle, itemTitle); s > TitleSimilarityThreshold {
				return s, true
			}
		}
		if lat1, lng1, ok1 := domain.Coordinates(candidate); ok1 {
			if lat2, lng2, ok2 := domain.Coordinates(meta); ok2 {
				if dist := GeoDistanceMeters(lat1, lng1, lat2, lng2); dist <= ProximityThresholdMeters {
					return 1 - dist/ProximityThresholdMeters, true
				}
			}
		}
	}
	return 0, false
}
