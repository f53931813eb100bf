package repository

import (
	"context"

	"gorm.io/gorm"
)

// Scope narrows or orders a list query.
type Scope = func(*gorm.DB) *gorm.DB

// CRUD is the storage contract shared by the simple content kinds.
type CRUD[T any] interface {
	Create(ctx context.Context, item *T) error
	Get(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, item *T) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, scopes ...Scope) ([]T, error)
}

type gormCRUD[T any] struct {
	db *gorm.DB
}

func newGormCRUD[T any](db *gorm.DB) *gormCRUD[T] {
	return &gormCRUD[T]{db: db}
}

func (r *gormCRUD[T]) Create(ctx context.Context, item *T) error {
	return translate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *gormCRUD[T]) Get(ctx context.Context, id uint) (*T, error) {
	var item T
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *gormCRUD[T]) Save(ctx context.Context, item *T) error {
	return translate(r.db.WithContext(ctx).Save(item).Error)
}

func (r *gormCRUD[T]) Delete(ctx context.Context, id uint) error {
	var item T
	res := r.db.WithContext(ctx).Delete(&item, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormCRUD[T]) List(ctx context.Context, scopes ...Scope) ([]T, error) {
	var items []T
	err := r.db.WithContext(ctx).Scopes(scopes...).Find(&items).Error
	return items, translate(err)
}
