package repository

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"mindcare/backend/internal/models"
)

type EventRepository interface {
	CRUD[models.Event]
	ListPublished(ctx context.Context, now time.Time) ([]models.Event, error)
}

type ResourceRepository interface {
	CRUD[models.Resource]
	ListPublished(ctx context.Context, category string) ([]models.Resource, error)
}

type BannerRepository interface {
	CRUD[models.Banner]
	ListActive(ctx context.Context) ([]models.Banner, error)
	NextOrder(ctx context.Context) (int, error)
	// Reorder sets each banner's order to its index in ids. ids must name
	// every banner exactly once, otherwise ErrOrderMismatch is returned.
	Reorder(ctx context.Context, ids []uint) error
}

type RecommendationRepository interface {
	CRUD[models.RecommendationCard]
	ListActive(ctx context.Context) ([]models.RecommendationCard, error)
}

// OrderBy sorts a list query.
func OrderBy(clause string) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Order(clause) }
}

type GormEventRepository struct{ *gormCRUD[models.Event] }

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{newGormCRUD[models.Event](db)}
}

// ListPublished returns published events, upcoming ones first by start time,
// followed by past ones most recent first.
func (r *GormEventRepository) ListPublished(ctx context.Context, now time.Time) ([]models.Event, error) {
	var upcoming, past []models.Event
	db := r.db.WithContext(ctx).Where("is_published = ?", true)
	if err := db.Session(&gorm.Session{}).Where("starts_at >= ?", now).Order("starts_at ASC").Find(&upcoming).Error; err != nil {
		return nil, translate(err)
	}
	if err := db.Session(&gorm.Session{}).Where("starts_at < ?", now).Order("starts_at DESC").Find(&past).Error; err != nil {
		return nil, translate(err)
	}
	return append(upcoming, past...), nil
}

type GormResourceRepository struct{ *gormCRUD[models.Resource] }

func NewGormResourceRepository(db *gorm.DB) *GormResourceRepository {
	return &GormResourceRepository{newGormCRUD[models.Resource](db)}
}

func (r *GormResourceRepository) ListPublished(ctx context.Context, category string) ([]models.Resource, error) {
	var items []models.Resource
	q := r.db.WithContext(ctx).Where("is_published = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.Order("title ASC").Find(&items).Error
	return items, translate(err)
}

type GormBannerRepository struct{ *gormCRUD[models.Banner] }

func NewGormBannerRepository(db *gorm.DB) *GormBannerRepository {
	return &GormBannerRepository{newGormCRUD[models.Banner](db)}
}

func (r *GormBannerRepository) ListActive(ctx context.Context) ([]models.Banner, error) {
	var items []models.Banner
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("sort_order ASC, id ASC").Find(&items).Error
	return items, translate(err)
}

func (r *GormBannerRepository) NextOrder(ctx context.Context) (int, error) {
	var highest sql.NullInt64
	row := r.db.WithContext(ctx).Model(&models.Banner{}).Select("MAX(sort_order)").Row()
	if err := row.Scan(&highest); err != nil {
		return 0, translate(err)
	}
	if !highest.Valid {
		return 0, nil
	}
	return int(highest.Int64) + 1, nil
}

func (r *GormBannerRepository) Reorder(ctx context.Context, ids []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []uint
		if err := tx.Model(&models.Banner{}).Pluck("id", &existing).Error; err != nil {
			return err
		}
		if !sameIDs(existing, ids) {
			return ErrOrderMismatch
		}
		for i, id := range ids {
			if err := tx.Model(&models.Banner{}).Where("id = ?", id).Update("sort_order", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func sameIDs(existing, ids []uint) bool {
	if len(existing) != len(ids) {
		return false
	}
	want := make(map[uint]bool, len(existing))
	for _, id := range existing {
		want[id] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return true
}

type GormRecommendationRepository struct {
	*gormCRUD[models.RecommendationCard]
}

func NewGormRecommendationRepository(db *gorm.DB) *GormRecommendationRepository {
	return &GormRecommendationRepository{newGormCRUD[models.RecommendationCard](db)}
}

func (r *GormRecommendationRepository) ListActive(ctx context.Context) ([]models.RecommendationCard, error) {
	var items []models.RecommendationCard
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("sort_order ASC, id ASC").Find(&items).Error
	return items, translate(err)
}
