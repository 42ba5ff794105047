// Package store persists character identities and captured payload records,
// and answers the freshness-gated lookups the fetch pipeline runs before
// touching the upstream.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cubelab/maple-proxy/pkg/apierr"
	"github.com/cubelab/maple-proxy/pkg/schema"
)

// Prometheus metrics for cache store lookups.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maple_cache_hits_total",
		Help: "Total fresh cache hits by kind",
	}, []string{"kind"})

	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maple_cache_misses_total",
		Help: "Total cache misses by kind",
	}, []string{"kind"})

	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maple_store_errors_total",
		Help: "Total store operation errors",
	}, []string{"operation"})
)

// Store wraps the relational cache store.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store and migrates its tables.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&CharacterIdentity{}, &CharacterRecord{}); err != nil {
		return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err).WithDetail("migrating cache tables")
	}
	// Partial unique index backing the single-instance upsert in Put.
	// AutoMigrate cannot express the predicate; the statement is valid on
	// both sqlite and postgres.
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_single_instance_record ON character_records (ocid, kind, filter) WHERE kind IN (%s)",
		singleInstanceKindList())
	if err := db.Exec(stmt).Error; err != nil {
		return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err).WithDetail("creating single-instance index")
	}
	return &Store{
		db:  db,
		now: time.Now,
	}, nil
}

// singleInstanceKindList renders the overwrite-in-place kinds as a quoted
// SQL list for the partial index predicate.
func singleInstanceKindList() string {
	var quoted []string
	for _, k := range schema.Kinds {
		if k.SingleInstance() {
			quoted = append(quoted, "'"+string(k)+"'")
		}
	}
	return strings.Join(quoted, ", ")
}

// GetIdentityByName returns the most recently observed identity bearing the
// name, or nil when the name is unknown.
func (s *Store) GetIdentityByName(ctx context.Context, name string) (*CharacterIdentity, error) {
	var identity CharacterIdentity
	err := s.db.WithContext(ctx).
		Where("character_name = ?", name).
		Order("observed_at DESC").
		First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		storeErrorsTotal.WithLabelValues("get_identity").Inc()
		return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err)
	}
	return &identity, nil
}

// GetIdentityByOCID returns the identity row for the OCID, or nil.
func (s *Store) GetIdentityByOCID(ctx context.Context, ocid string) (*CharacterIdentity, error) {
	var identity CharacterIdentity
	err := s.db.WithContext(ctx).
		Where("ocid = ?", ocid).
		First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		storeErrorsTotal.WithLabelValues("get_identity").Inc()
		return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err)
	}
	return &identity, nil
}

// PutIdentity upserts the identity row by OCID and stamps ObservedAt.
func (s *Store) PutIdentity(ctx context.Context, identity *CharacterIdentity) error {
	if identity.ObservedAt.IsZero() {
		identity.ObservedAt = s.now()
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ocid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"character_name", "world_name", "character_class", "character_level", "observed_at",
			}),
		}).
		Create(identity).Error
	if err != nil {
		storeErrorsTotal.WithLabelValues("put_identity").Inc()
		return apierr.Wrap(apierr.KindPersistenceFailure, "", err)
	}
	return nil
}

// GetFresh returns the newest record for (ocid, kind, filter) captured
// within the freshness window, or nil when none qualifies. Ties on
// captured_at break toward the later insertion.
func (s *Store) GetFresh(ctx context.Context, ocid string, kind schema.Kind, window time.Duration, filters map[string]string) (*CharacterRecord, error) {
	cutoff := s.now().Add(-window)

	var record CharacterRecord
	err := s.db.WithContext(ctx).
		Where("ocid = ? AND kind = ? AND filter = ? AND captured_at >= ?",
			ocid, string(kind), FilterKey(filters), cutoff).
		Order("captured_at DESC, id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cacheMissesTotal.WithLabelValues(string(kind)).Inc()
		return nil, nil
	}
	if err != nil {
		storeErrorsTotal.WithLabelValues("get_fresh").Inc()
		return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err)
	}

	cacheHitsTotal.WithLabelValues(string(kind)).Inc()
	return &record, nil
}

// GetAny returns the newest record for (ocid, kind, filter) regardless of
// freshness. Used by diagnostics and forced-refresh logging.
func (s *Store) GetAny(ctx context.Context, ocid string, kind schema.Kind, filters map[string]string) (*CharacterRecord, error) {
	var record CharacterRecord
	err := s.db.WithContext(ctx).
		Where("ocid = ? AND kind = ? AND filter = ?", ocid, string(kind), FilterKey(filters)).
		Order("captured_at DESC, id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		storeErrorsTotal.WithLabelValues("get_any").Inc()
		return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err)
	}
	return &record, nil
}

// Put persists a captured payload. Single-instance kinds overwrite the
// existing (ocid, kind, filter) row, append kinds insert a new one. The
// caller provides capturedAt already normalized to server-local time.
func (s *Store) Put(ctx context.Context, ocid string, kind schema.Kind, filters map[string]string, payload []byte, capturedAt time.Time) (*CharacterRecord, error) {
	record := &CharacterRecord{
		OCID:       ocid,
		Kind:       string(kind),
		Filter:     FilterKey(filters),
		CapturedAt: capturedAt,
		Payload:    payload,
	}

	tx := s.db.WithContext(ctx)
	if kind.SingleInstance() {
		// Atomic upsert against the partial unique index, safe for
		// concurrent writers on the same key.
		tx = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ocid"}, {Name: "kind"}, {Name: "filter"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Name: "kind"}, Value: record.Kind},
			}},
			DoUpdates: clause.AssignmentColumns([]string{"captured_at", "payload"}),
		})
	}
	if err := tx.Create(record).Error; err != nil {
		storeErrorsTotal.WithLabelValues("put").Inc()
		return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err)
	}

	if kind.SingleInstance() {
		// On conflict the insert id is not reported back; reload the row.
		var existing CharacterRecord
		err := s.db.WithContext(ctx).
			Where("ocid = ? AND kind = ? AND filter = ?", record.OCID, record.Kind, record.Filter).
			First(&existing).Error
		if err != nil {
			storeErrorsTotal.WithLabelValues("put").Inc()
			return nil, apierr.Wrap(apierr.KindPersistenceFailure, "", err)
		}
		return &existing, nil
	}
	return record, nil
}
