package store

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/pkg/types"
)

// ErrNotFound means no row exists for the requested key (or the store is
// disabled in cache-only mode).
var ErrNotFound = errors.New("store: record not found")

// ErrDisabled is returned by operations that cannot degrade silently when
// the service runs without a persistent store.
var ErrDisabled = errors.New("store: persistence disabled")

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.Transaction `json:"items"`
	Total int64                 `json:"total"`
}

// Store is the persistence boundary for transaction records. At most one row
// exists per reference id.
type Store interface {
	Insert(ctx context.Context, t *models.Transaction) error
	// Upsert writes the full record keyed by reference id.
	Upsert(ctx context.Context, t *models.Transaction) error
	FindByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	// Scan lists records for admin pages with filters, pagination and sorting.
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

// New returns the gorm-backed store, or the disabled store when the service
// runs in cache-only mode (nil db).
func New(db *gorm.DB, log *zap.SugaredLogger) Store {
	if db == nil {
		return &disabledStore{}
	}
	return &gormStore{db: db, log: log}
}

type gormStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func (s *gormStore) Insert(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *gormStore) Upsert(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference_id"}},
			UpdateAll: true,
		}).
		Create(t).Error
}

func (s *gormStore) FindByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error) {
	return s.findOne(ctx, "reference_id", referenceID)
}

func (s *gormStore) FindByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	return s.findOne(ctx, "external_id", externalID)
}

func (s *gormStore) findOne(ctx context.Context, column, value string) (*models.Transaction, error) {
	if value == "" {
		return nil, ErrNotFound
	}
	var t models.Transaction
	err := s.db.WithContext(ctx).Where(column+" = ?", value).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (s *gormStore) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Transaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []*models.Transaction
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	return &ScanResponse{Items: rows, Total: total}, nil
}

// disabledStore serves cache-only deployments: lookups miss, writes are
// silent no-ops, admin scans fail loudly.
type disabledStore struct{}

func (d *disabledStore) Insert(context.Context, *models.Transaction) error { return nil }
func (d *disabledStore) Upsert(context.Context, *models.Transaction) error { return nil }
func (d *disabledStore) FindByReferenceID(context.Context, string) (*models.Transaction, error) {
	return nil, ErrNotFound
}
func (d *disabledStore) FindByExternalID(context.Context, string) (*models.Transaction, error) {
	return nil, ErrNotFound
}
func (d *disabledStore) Scan(context.Context, *ScanRequest) (*ScanResponse, error) {
	return nil, ErrDisabled
}

// NewDisabled returns the cache-only store. Exposed for tests.
func NewDisabled() Store { return &disabledStore{} }

// Module exposes the store via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
