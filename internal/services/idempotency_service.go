// Package services – IdempotencyService
//
// This file implements the idempotency cache that makes any guarded operation
// safe to retry: the first execution under a key persists its serialized
// result with a TTL, and repeat executions within the TTL replay that result
// without re-invoking the operation.
//
// Failure semantics are deliberately asymmetric: the guarded operation's own
// error propagates, but a cache lookup or write failure never does — it is
// logged and treated as a cache miss, so a flaky cache can slow callers down
// but can never turn a successful operation into a failure.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/plateful/plate-backend/internal/domain"
	"github.com/plateful/plate-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IdempotencyRepo defines the repository contract required by
// IdempotencyService.
type IdempotencyRepo interface {
	// GetIdempotencyRecord returns a non-expired record or repo.ErrNotFound.
	GetIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key string, now time.Time) (*domain.IdempotencyRecord, error)

	// CreateIdempotencyRecord inserts a record with the given TTL.
	CreateIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key, result string, ttl time.Duration) (*domain.IdempotencyRecord, error)

	// DeleteIdempotencyRecord removes one record regardless of expiry.
	DeleteIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key string) error

	// SweepExpiredIdempotency removes expired records, reporting the count.
	SweepExpiredIdempotency(ctx context.Context, db *gorm.DB, tenantID string, now time.Time) (int64, error)
}

// Operation is a guarded unit of work. It returns the serialized outcome that
// will be cached and replayed for retries.
type Operation func(ctx context.Context) (json.RawMessage, error)

// IdempotencyService caches operation results under deterministic keys,
// scoped to a tenant partition and the acting user.
type IdempotencyService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the idempotency repository used by this service.
	Repo IdempotencyRepo
	// TenantID is the fixed partition key (single tenant today, but modeled
	// so records from different deployments can share a table).
	TenantID string
	// DefaultTTL applies when Execute is called with a non-positive TTL.
	DefaultTTL time.Duration
}

// GenerateKey derives a deterministic key from an operation name and its
// parameters: parameter keys are sorted lexicographically, values are
// JSON-encoded, and the concatenation is hashed with FNV-1a. Identical
// parameter sets always yield the same key regardless of map iteration order.
//
// The hash is non-cryptographic on purpose: a collision only risks a stale
// cache replay, never a security boundary.
func (s *IdempotencyService) GenerateKey(operation string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(operation)
	for _, k := range keys {
		v, err := json.Marshal(params[k])
		if err != nil {
			// Unencodable values still participate via their formatted form.
			v = []byte(fmt.Sprintf("%v", params[k]))
		}
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.Write(v)
	}

	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return fmt.Sprintf("%s_%x", operation, h.Sum64())
}

// Execute runs op under the given key, or replays the stored result of a
// previous run. The boolean reports whether the result was replayed.
//
// A non-positive ttl falls back to DefaultTTL. Cache lookup and write
// failures are logged and ignored; op's own result always reaches the caller.
func (s *IdempotencyService) Execute(ctx context.Context, userID, key string, ttl time.Duration, op Operation) (json.RawMessage, bool, error) {
	tr := otel.Tracer("services/IdempotencyService")
	ctx, span := tr.Start(ctx, "Execute",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("idempotency.key", key),
		),
	)
	defer span.End()

	if ttl <= 0 {
		ttl = s.DefaultTTL
	}
	now := time.Now().UTC()

	rec, err := s.Repo.GetIdempotencyRecord(ctx, s.DB, s.TenantID, userID, key, now)
	if err == nil {
		idemReplays.WithLabelValues("replayed").Inc()
		return json.RawMessage(rec.Result), true, nil
	}
	if err != repo.ErrNotFound {
		log.Warn().Err(err).Str("key", key).Msg("idempotency lookup failed; executing without cache")
	}

	result, err := op(ctx)
	if err != nil {
		return nil, false, err
	}

	if _, cerr := s.Repo.CreateIdempotencyRecord(ctx, s.DB, s.TenantID, userID, key, string(result), ttl); cerr != nil && cerr != repo.ErrDuplicate {
		// The operation already succeeded; a failed write-through only costs
		// future replays.
		log.Warn().Err(cerr).Str("key", key).Msg("idempotency record write failed")
	}
	idemReplays.WithLabelValues("executed").Inc()
	return result, false, nil
}

// Invalidate drops the record for key so the next Execute re-runs the
// operation.
func (s *IdempotencyService) Invalidate(ctx context.Context, userID, key string) error {
	return s.Repo.DeleteIdempotencyRecord(ctx, s.DB, s.TenantID, userID, key)
}

// SweepExpired deletes all records whose expiry has passed and reports the
// number removed.
func (s *IdempotencyService) SweepExpired(ctx context.Context) (int64, error) {
	tr := otel.Tracer("services/IdempotencyService")
	ctx, span := tr.Start(ctx, "SweepExpired")
	defer span.End()

	removed, err := s.Repo.SweepExpiredIdempotency(ctx, s.DB, s.TenantID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Msg("swept expired idempotency records")
	}
	return removed, nil
}
