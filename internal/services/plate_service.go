// Package services – PlateService
//
// This file implements PlateService, the coordinator for saving items to a
// user's plate. It validates input, normalizes external identifiers, runs
// duplicate detection, and persists through an upsert keyed on the
// (owner, type, normalized id) uniqueness constraint, so that concurrent or
// repeated saves of the same content can never create a second row.
//
// Two save paths are exposed: Save performs the unconditional upsert (also
// used as the "save anyway" confirmation after a duplicate warning), and
// SaveEnhanced runs detection first, short-circuiting on an exact duplicate
// and otherwise attaching the detection result so the caller can decide
// whether to prompt the user.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// owner and item identifiers. Save outcomes are counted in Prometheus.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/plateful/plate-backend/internal/dedup"
	"github.com/plateful/plate-backend/internal/domain"
	"github.com/plateful/plate-backend/internal/repo"
	"github.com/plateful/plate-backend/internal/search"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlateRepo defines the repository contract required by PlateService.
// Implementations are responsible for persistence of saved-item rows.
type PlateRepo interface {
	// UpsertSavedItem inserts or replaces-metadata-on-conflict for the
	// (userID, itemType, itemID) key and returns the persisted row.
	UpsertSavedItem(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, itemID string, metadata []byte) (*domain.SavedItem, error)

	// GetSavedItemByKey fetches the owner's item with the exact key.
	GetSavedItemByKey(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, itemID string) (*domain.SavedItem, error)

	// ListSavedItemsByType returns all of the owner's items of one type.
	ListSavedItemsByType(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType) ([]domain.SavedItem, error)

	// CountSavedItems returns the owner's item total for pagination.
	CountSavedItems(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType) (int64, error)

	// ListSavedItemsPage returns a page of the owner's items.
	ListSavedItemsPage(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, offset, limit int) ([]domain.SavedItem, error)

	// DeleteSavedItem removes one owned item by row id.
	DeleteSavedItem(ctx context.Context, db *gorm.DB, id, userID string) error
}

// SaveParams carries one candidate save. Metadata is the typed payload decoded
// at the transport boundary; it may be nil.
type SaveParams struct {
	ItemType domain.ItemType
	ItemID   string
	Metadata domain.Metadata
}

// SaveResult is the outcome of the duplicate-aware save path.
type SaveResult struct {
	// Item is the persisted row — the pre-existing one when IsDuplicate.
	Item *domain.SavedItem `json:"item"`

	// IsDuplicate reports that the exact item was already on the plate and no
	// write was performed.
	IsDuplicate bool `json:"is_duplicate"`

	// Check carries the detection detail (similar items, warning flag) so the
	// caller can offer a "save anyway" confirmation.
	Check *dedup.CheckResult `json:"check,omitempty"`
}

// PlateService coordinates validation, normalization, duplicate detection,
// and persistence for a user's saved items.
type PlateService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the saved-item repository used by this service.
	Repo PlateRepo
	// Detector classifies candidate saves against existing items.
	Detector *dedup.Detector
}

// NewPlateService constructs a PlateService whose detector reads through the
// same repository.
func NewPlateService(db *gorm.DB, r PlateRepo) *PlateService {
	s := &PlateService{DB: db, Repo: r}
	s.Detector = dedup.NewDetector(detectorStore{svc: s})
	return s
}

// detectorStore adapts the PlateRepo to the dedup.Store contract, translating
// the repository's not-found sentinel.
type detectorStore struct{ svc *PlateService }

func (d detectorStore) GetByKey(ctx context.Context, ownerID string, t domain.ItemType, itemID string) (*domain.SavedItem, error) {
	item, err := d.svc.Repo.GetSavedItemByKey(ctx, d.svc.DB, ownerID, t, itemID)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, dedup.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (d detectorStore) ListByType(ctx context.Context, ownerID string, t domain.ItemType) ([]domain.SavedItem, error) {
	return d.svc.Repo.ListSavedItemsByType(ctx, d.svc.DB, ownerID, t)
}

// validate applies the parameter and authentication preconditions shared by
// every save path. It has no side effects.
func (s *PlateService) validate(userID string, p SaveParams) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	if _, ok := domain.ParseItemType(string(p.ItemType)); !ok {
		return ErrInvalidItemType
	}
	if strings.TrimSpace(p.ItemID) == "" {
		return ErrMissingItemID
	}
	return nil
}

// Save performs the unconditional upsert: normalize the id, then insert or
// replace metadata on the (owner, type, id) conflict target. It never creates
// a second row for the same content and only fails on validation or
// persistence errors.
func (s *PlateService) Save(ctx context.Context, userID string, p SaveParams) (*domain.SavedItem, error) {
	tr := otel.Tracer("services/PlateService")
	ctx, span := tr.Start(ctx, "Save",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("item.type", string(p.ItemType)),
		),
	)
	defer span.End()

	if err := s.validate(userID, p); err != nil {
		saveOutcomes.WithLabelValues(string(p.ItemType), "error").Inc()
		return nil, err
	}

	normalized := dedup.NormalizeItemID(p.ItemType, p.ItemID)
	meta, err := domain.EncodeMetadata(p.Metadata)
	if err != nil {
		saveOutcomes.WithLabelValues(string(p.ItemType), "error").Inc()
		return nil, err
	}

	item, err := s.Repo.UpsertSavedItem(ctx, s.DB, userID, p.ItemType, normalized, meta)
	if err != nil {
		saveOutcomes.WithLabelValues(string(p.ItemType), "error").Inc()
		return nil, err
	}
	saveOutcomes.WithLabelValues(string(p.ItemType), "saved").Inc()
	return item, nil
}

// SaveEnhanced is the duplicate-aware save path:
//
//  1. Validate and normalize.
//  2. Run the duplicate detector.
//  3. Exact duplicate: return the existing row with IsDuplicate set and skip
//     any write (idempotent no-op).
//  4. Otherwise persist via Save and attach the detection result, including
//     similar items and the warning flag, so the caller can decide whether to
//     prompt the user before treating the save as final.
func (s *PlateService) SaveEnhanced(ctx context.Context, userID string, p SaveParams) (*SaveResult, error) {
	tr := otel.Tracer("services/PlateService")
	ctx, span := tr.Start(ctx, "SaveEnhanced",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("item.type", string(p.ItemType)),
		),
	)
	defer span.End()

	if err := s.validate(userID, p); err != nil {
		saveOutcomes.WithLabelValues(string(p.ItemType), "error").Inc()
		return nil, err
	}

	check, err := s.Detector.Check(ctx, userID, p.ItemType, p.ItemID, p.Metadata)
	if err != nil {
		saveOutcomes.WithLabelValues(string(p.ItemType), "error").Inc()
		return nil, err
	}
	if check.ExactDuplicate != nil {
		saveOutcomes.WithLabelValues(string(p.ItemType), "duplicate").Inc()
		return &SaveResult{Item: check.ExactDuplicate, IsDuplicate: true, Check: check}, nil
	}

	item, err := s.Save(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if check.ShouldWarn {
		saveOutcomes.WithLabelValues(string(p.ItemType), "warned").Inc()
	}
	return &SaveResult{Item: item, Check: check}, nil
}

// ConfirmSave persists a candidate the user has approved after seeing similar
// items. It is an explicit bypass of the warn path and shares Save's upsert
// semantics.
func (s *PlateService) ConfirmSave(ctx context.Context, userID string, p SaveParams) (*domain.SavedItem, error) {
	return s.Save(ctx, userID, p)
}

// Get returns the user's saved item for the normalized (type, id) key, or
// ErrItemNotFound.
func (s *PlateService) Get(ctx context.Context, userID string, t domain.ItemType, itemID string) (*domain.SavedItem, error) {
	if err := s.validate(userID, SaveParams{ItemType: t, ItemID: itemID}); err != nil {
		return nil, err
	}
	item, err := s.Repo.GetSavedItemByKey(ctx, s.DB, userID, t, dedup.NormalizeItemID(t, itemID))
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// CheckDuplicate runs detection without persisting anything. Used by the
// dry-run endpoint to let a client warn before the user commits.
func (s *PlateService) CheckDuplicate(ctx context.Context, userID string, p SaveParams) (*dedup.CheckResult, error) {
	if err := s.validate(userID, p); err != nil {
		return nil, err
	}
	return s.Detector.Check(ctx, userID, p.ItemType, p.ItemID, p.Metadata)
}

// ListPage returns a page of the user's saved items, newest first, optionally
// filtered by type (pass "" for all). It applies defaults for invalid
// page/pageSize and returns the total count.
func (s *PlateService) ListPage(ctx context.Context, userID string, t domain.ItemType, page, pageSize int) ([]domain.SavedItem, int64, error) {
	tr := otel.Tracer("services/PlateService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountSavedItems(ctx, s.DB, userID, t)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.SavedItem{}, 0, nil
	}

	items, err := s.Repo.ListSavedItemsPage(ctx, s.DB, userID, t, offset, pageSize)
	return items, total, err
}

// searchScanLimit caps how many rows are loaded to build the in-memory title
// index for one search request.
const searchScanLimit = 1000

// SearchHit is one ranked search result.
type SearchHit struct {
	Item  domain.SavedItem `json:"item"`
	Title string           `json:"title"`
	Score float64          `json:"score"`
}

// Search ranks the user's saved items against a free-text query using the
// title index. Pass t == "" to search across all item types. Results are
// ordered by descending score; items without a match are omitted.
func (s *PlateService) Search(ctx context.Context, userID string, t domain.ItemType, query string, limit int) ([]SearchHit, error) {
	tr := otel.Tracer("services/PlateService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("item.type", string(t)),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 {
		limit = 20
	}

	items, err := s.Repo.ListSavedItemsPage(ctx, s.DB, userID, t, 0, searchScanLimit)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.SavedItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	idx := search.New(items)
	ranked := idx.TopK(query, limit)

	hits := make([]SearchHit, 0, len(ranked))
	for _, r := range ranked {
		item, okID := byID[r.ItemID]
		if !okID {
			continue
		}
		hits = append(hits, SearchHit{Item: item, Title: DisplayTitle(&item), Score: r.Score})
	}
	return hits, nil
}

// Delete removes one saved item owned by userID.
func (s *PlateService) Delete(ctx context.Context, userID, id string) error {
	if err := s.Repo.DeleteSavedItem(ctx, s.DB, id, userID); err != nil {
		if err == repo.ErrNotFound {
			return ErrItemNotFound
		}
		return err
	}
	return nil
}

// DisplayTitle derives a presentable title for a saved item: the metadata
// title when present, otherwise the normalized item id recased word by word.
func DisplayTitle(item *domain.SavedItem) string {
	meta, err := domain.DecodeMetadata(item.ItemType, item.Metadata)
	if err == nil {
		if title, ok := domain.Title(meta); ok {
			return title
		}
	}
	caser := cases.Title(language.English)
	return caser.String(strings.Join(strings.FieldsFunc(item.ItemID, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	}), " "))
}
