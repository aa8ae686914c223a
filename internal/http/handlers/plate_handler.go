// Plate HTTP handlers.
//
// This file exposes REST endpoints for a user's plate (saved items):
//   - POST   /plate/items          (smart save with duplicate detection)
//   - POST   /plate/items/check    (dry-run duplicate check, no write)
//   - POST   /plate/items/confirm  (save anyway after a duplicate warning)
//   - GET    /plate/items          (list, paginated, ETag support)
//   - GET    /plate/search         (rank saved items against a query)
//   - DELETE /plate/items/{id}     (remove a saved item)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
//
// Idempotency:
// If the client supplies an Idempotency-Key header on a save, the whole save
// is executed through the idempotency service: the first execution stores its
// serialized response, and retries within the TTL replay it with
// `Idempotency-Replayed: true`. Without the header the service derives a
// deterministic key from the save parameters, so blind client retries of the
// same content are still collapsed.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/plateful/plate-backend/internal/dedup"
	"github.com/plateful/plate-backend/internal/domain"
	"github.com/plateful/plate-backend/internal/http/middleware"
	"github.com/plateful/plate-backend/internal/repo"
	"github.com/plateful/plate-backend/internal/services"
	"github.com/plateful/plate-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PlateService defines the saved-item operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PlateService interface {
	// SaveEnhanced runs duplicate detection and persists unless the exact
	// item is already on the plate.
	SaveEnhanced(ctx context.Context, userID string, p services.SaveParams) (*services.SaveResult, error)
	// ConfirmSave persists after the user approved a duplicate warning.
	ConfirmSave(ctx context.Context, userID string, p services.SaveParams) (*domain.SavedItem, error)
	// CheckDuplicate runs detection without writing anything.
	CheckDuplicate(ctx context.Context, userID string, p services.SaveParams) (*dedup.CheckResult, error)
	// ListPage returns a page of saved items and the total count.
	ListPage(ctx context.Context, userID string, t domain.ItemType, page, pageSize int) ([]domain.SavedItem, int64, error)
	// Search ranks saved items against a free-text query.
	Search(ctx context.Context, userID string, t domain.ItemType, query string, limit int) ([]services.SearchHit, error)
	// Delete removes one saved item owned by userID.
	Delete(ctx context.Context, userID, id string) error
}

// IdempotencyService defines the retry-dedup operations consumed by handlers.
type IdempotencyService interface {
	// GenerateKey derives a deterministic key from an operation and params.
	GenerateKey(operation string, params map[string]any) string
	// Execute runs op under key or replays a stored result.
	Execute(ctx context.Context, userID, key string, ttl time.Duration, op services.Operation) (json.RawMessage, bool, error)
	// SweepExpired removes expired records, reporting the count.
	SweepExpired(ctx context.Context) (int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for plate and maintenance operations.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	plateSvc PlateService
	idemSvc  IdempotencyService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(plateSvc PlateService, idemSvc IdempotencyService) *Handlers {
	return &Handlers{plateSvc: plateSvc, idemSvc: idemSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware), falling back to the "X-User-ID" header. An empty return means
// the request is unauthenticated and handlers answer 401.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// SaveItemRequest is the JSON payload for saving an item to the plate.
type SaveItemRequest struct {
	// ItemType is one of: restaurant, recipe, photo, video, other.
	ItemType string `json:"item_type" binding:"required" example:"recipe"`
	// ItemID is the external identifier of the content being saved.
	ItemID string `json:"item_id" binding:"required" example:"52772"`
	// Metadata is the type-specific payload (title, coordinates, ...).
	Metadata json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
}

// SaveItemResponse is the JSON envelope for a completed save.
type SaveItemResponse struct {
	// Item is the persisted row (the pre-existing one when AlreadySaved).
	Item *domain.SavedItem `json:"item"`
	// AlreadySaved reports that the exact item was on the plate and no write
	// happened.
	AlreadySaved bool `json:"already_saved"`
	// Check carries detection detail when similar items were found.
	Check *dedup.CheckResult `json:"check,omitempty"`
}

// CheckItemResponse wraps a dry-run duplicate check.
type CheckItemResponse struct {
	Check *dedup.CheckResult `json:"check"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListItemsResponse wraps a page of saved items and pagination information.
type ListItemsResponse struct {
	Items      []domain.SavedItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// SearchResponse wraps ranked search hits.
type SearchResponse struct {
	Hits []services.SearchHit `json:"hits"`
}

// SweepResponse reports how many expired idempotency records were removed.
type SweepResponse struct {
	Removed int64 `json:"removed"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// bindSaveParams decodes and validates the save payload into service params.
// Transport-level validation only; the service re-validates.
func bindSaveParams(c *gin.Context) (services.SaveParams, bool) {
	var req SaveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_type and item_id required")
		return services.SaveParams{}, false
	}

	t, okType := domain.ParseItemType(req.ItemType)
	if !okType {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown item_type")
		return services.SaveParams{}, false
	}
	if strings.TrimSpace(req.ItemID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id required")
		return services.SaveParams{}, false
	}

	meta, err := domain.DecodeMetadata(t, req.Metadata)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid metadata payload")
		return services.SaveParams{}, false
	}

	return services.SaveParams{ItemType: t, ItemID: req.ItemID, Metadata: meta}, true
}

// failSaveError maps service sentinels to HTTP responses, using fallbackCode
// for unclassified errors.
func failSaveError(c *gin.Context, err error, fallbackCode string) {
	switch err {
	case services.ErrUnauthenticated:
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
	case services.ErrInvalidItemType:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown item_type")
	case services.ErrMissingItemID:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id required")
	case services.ErrItemNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "saved item not found")
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

// saveIdempotencyTTL caps how long a stored save response is replayable.
const saveIdempotencyTTL = 24 * time.Hour

//
// Handlers
//

// SaveItem godoc
// @ID          saveItem
// @Summary     Save an item to the plate
// @Description Runs duplicate detection and persists the item. An exact duplicate
// @Description returns the existing row with already_saved=true; near-duplicates are
// @Description persisted and flagged in `check` so clients can offer an undo.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Plate
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "User ID that owns the plate"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(save_1a2b3c4d5e6f7a8b)
// @Param       body             body    handlers.SaveItemRequest  true  "Save payload"
//
// @Success     200  {object}  handlers.SaveItemResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plate/items [post]
func (h *Handlers) SaveItem(c *gin.Context) {
	ctx := c.Request.Context()

	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
		return
	}

	p, okReq := bindSaveParams(c)
	if !okReq {
		return
	}

	// Client-supplied key wins; otherwise derive one from the save parameters
	// so retries of the same content collapse even without the header.
	key, _ := middleware.GetIdempotencyKey(c)
	if key == "" {
		key = h.idemSvc.GenerateKey("save_item", map[string]any{
			"user_id":   uid,
			"item_type": string(p.ItemType),
			"item_id":   dedup.NormalizeItemID(p.ItemType, p.ItemID),
		})
	}

	var svcErr error
	raw, replayed, err := h.idemSvc.Execute(ctx, uid, key, saveIdempotencyTTL, func(ctx context.Context) (json.RawMessage, error) {
		res, err := h.plateSvc.SaveEnhanced(ctx, uid, p)
		if err != nil {
			svcErr = err
			return nil, err
		}
		return json.Marshal(SaveItemResponse{
			Item:         res.Item,
			AlreadySaved: res.IsDuplicate,
			Check:        res.Check,
		})
	})
	if err != nil {
		if svcErr != nil {
			failSaveError(c, svcErr, ErrCodeSaveFailed)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}

	if replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// CheckItem godoc
// @ID          checkItem
// @Summary     Check an item for duplicates
// @Description Runs duplicate detection against the user's plate without saving.
// @Tags        Plate
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID that owns the plate"  example(user123)
// @Param       body       body    handlers.SaveItemRequest  true  "Candidate payload"
//
// @Success     200  {object}  handlers.CheckItemResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plate/items/check [post]
func (h *Handlers) CheckItem(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
		return
	}

	p, okReq := bindSaveParams(c)
	if !okReq {
		return
	}

	check, err := h.plateSvc.CheckDuplicate(c.Request.Context(), uid, p)
	if err != nil {
		failSaveError(c, err, ErrCodeCheckFailed)
		return
	}
	ok(c, http.StatusOK, CheckItemResponse{Check: check})
}

// ConfirmSaveItem godoc
// @ID          confirmSaveItem
// @Summary     Save an item despite a duplicate warning
// @Description Persists the item unconditionally. Intended as the follow-up call
// @Description after SaveItem or CheckItem reported similar items.
// @Tags        Plate
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID that owns the plate"  example(user123)
// @Param       body       body    handlers.SaveItemRequest  true  "Save payload"
//
// @Success     200  {object}  handlers.SaveItemResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plate/items/confirm [post]
func (h *Handlers) ConfirmSaveItem(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
		return
	}

	p, okReq := bindSaveParams(c)
	if !okReq {
		return
	}

	item, err := h.plateSvc.ConfirmSave(c.Request.Context(), uid, p)
	if err != nil {
		failSaveError(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, SaveItemResponse{Item: item})
}

// ListItems godoc
// @ID          listItems
// @Summary     List saved items (paginated)
// @Description Returns a page of the user's plate, newest first, optionally filtered
// @Description by type. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Plate
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "User ID that owns the plate"  example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"   example(W/\"plate:user123:recipe:3:1700000000\")
// @Param       type           query   string  false "Filter by item type"          Enums(restaurant, recipe, photo, video, other)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListItemsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing user identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /plate/items [get]
func (h *Handlers) ListItems(c *gin.Context) {
	ctx := c.Request.Context()

	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
		return
	}

	var t domain.ItemType
	if q := c.Query("type"); q != "" {
		parsed, okType := domain.ParseItemType(q)
		if !okType {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown item type filter")
			return
		}
		t = parsed
	}

	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.plateSvc.(*services.PlateService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.PlateStats(ctx, db, uid, t)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"plate:%s:%s:%d:%d"`, uid, t, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.plateSvc.ListPage(ctx, uid, t, page, pageSize)
	if err != nil {
		failSaveError(c, err, ErrCodeListFailed)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListItemsResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// SearchItems godoc
// @ID          searchItems
// @Summary     Search saved items
// @Description Ranks the user's saved items against a free-text query by title
// @Description similarity. An empty query returns no hits.
// @Tags        Plate
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID that owns the plate"  example(user123)
// @Param       q          query   string  true  "Search query"                 example(pizza)
// @Param       type       query   string  false "Filter by item type"          Enums(restaurant, recipe, photo, video, other)
// @Param       limit      query   int     false "Maximum hits"                 minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.SearchResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing user identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /plate/search [get]
func (h *Handlers) SearchItems(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query parameter q required")
		return
	}

	var t domain.ItemType
	if q := c.Query("type"); q != "" {
		parsed, okType := domain.ParseItemType(q)
		if !okType {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown item type filter")
			return
		}
		t = parsed
	}

	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), 20), 1, 100)

	hits, err := h.plateSvc.Search(c.Request.Context(), uid, t, query, limit)
	if err != nil {
		failSaveError(c, err, ErrCodeSearchFailed)
		return
	}
	ok(c, http.StatusOK, SearchResponse{Hits: hits})
}

// DeleteItem godoc
// @ID          deleteItem
// @Summary     Remove a saved item
// @Description Deletes one saved item owned by the current user.
// @Tags        Plate
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID that owns the plate"  example(user123)
// @Param       id         path    string  true  "Saved item ID (UUID)"         format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Missing user identity"
// @Failure     404  {object} handlers.ErrorResponse "Item not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /plate/items/{id} [delete]
func (h *Handlers) DeleteItem(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id required")
		return
	}

	if err := h.plateSvc.Delete(c.Request.Context(), uid, id); err != nil {
		failSaveError(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// SweepIdempotency godoc
// @ID          sweepIdempotency
// @Summary     Remove expired idempotency records
// @Description Maintenance endpoint that deletes idempotency records past their TTL.
// @Tags        Maintenance
// @Produce     json
//
// @Success     200  {object} handlers.SweepResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /maintenance/idempotency/sweep [post]
func (h *Handlers) SweepIdempotency(c *gin.Context) {
	removed, err := h.idemSvc.SweepExpired(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSweepFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, SweepResponse{Removed: removed})
}
