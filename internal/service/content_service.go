package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/cache"
	"mindcare/backend/pkg/logger"
)

var (
	ErrEventNotFound          = errors.New("event not found")
	ErrResourceNotFound       = errors.New("resource not found")
	ErrBannerNotFound         = errors.New("banner not found")
	ErrRecommendationNotFound = errors.New("recommendation card not found")
	ErrInvalidOrder           = errors.New("banner order must list every banner exactly once")
	ErrInvalidEventTime       = errors.New("event must end after it starts")
)

// Content kinds, also the second segment of their cache keys.
const (
	KindEvents          = "events"
	KindResources       = "resources"
	KindBanners         = "banners"
	KindRecommendations = "recommendations"
)

// ContentRepositories groups the stores behind ContentService.
type ContentRepositories struct {
	Events          repository.EventRepository
	Resources       repository.ResourceRepository
	Banners         repository.BannerRepository
	Recommendations repository.RecommendationRepository
}

// ContentService serves the public content lists and their admin CRUD.
// Public lists go through the cache; every mutation of a kind drops that
// kind's cached lists.
type ContentService struct {
	repos ContentRepositories
	store cache.Store
	ttl   time.Duration
	log   *logger.Logger
	now   func() time.Time
}

// NewContentService wires the service. A nil store disables caching.
func NewContentService(repos ContentRepositories, store cache.Store, ttl time.Duration, log *logger.Logger) *ContentService {
	return &ContentService{
		repos: repos,
		store: store,
		ttl:   ttl,
		log:   log.WithComponent("content_service"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(kind, filter string) string {
	key := "content:" + kind
	if filter != "" {
		key += ":" + filter
	}
	return key
}

// cached returns the list stored under key, loading and storing it on a miss.
// Cache failures are logged and fall through to load.
func cached[T any](ctx context.Context, s *ContentService, key string, load func() ([]T, error)) ([]T, error) {
	if s.store != nil {
		raw, ok, err := s.store.Get(ctx, key)
		if err != nil {
			s.log.Warn("Cache read failed", "key", key, "error", err.Error())
		} else if ok {
			var items []T
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
		}
	}

	items, err := load()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	if s.store != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.store.Set(ctx, key, raw, s.ttl); err != nil {
				s.log.Warn("Cache write failed", "key", key, "error", err.Error())
			}
		}
	}
	return items, nil
}

func (s *ContentService) invalidate(ctx context.Context, kind string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeletePrefix(ctx, cacheKey(kind, "")); err != nil {
		s.log.Warn("Cache invalidation failed", "kind", kind, "error", err.Error())
	}
}

// --- public ---

// ListEvents returns published events, upcoming first
func (s *ContentService) ListEvents(ctx context.Context) ([]models.Event, error) {
	return cached(ctx, s, cacheKey(KindEvents, ""), func() ([]models.Event, error) {
		return s.repos.Events.ListPublished(ctx, s.now())
	})
}

// GetPublishedEvent hides drafts behind ErrEventNotFound
func (s *ContentService) GetPublishedEvent(ctx context.Context, id uint) (*models.Event, error) {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsPublished {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// ListResources returns published resources, optionally of one category
func (s *ContentService) ListResources(ctx context.Context, category string) ([]models.Resource, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	return cached(ctx, s, cacheKey(KindResources, category), func() ([]models.Resource, error) {
		return s.repos.Resources.ListPublished(ctx, category)
	})
}

// ListBanners returns active banners in display order
func (s *ContentService) ListBanners(ctx context.Context) ([]models.Banner, error) {
	return cached(ctx, s, cacheKey(KindBanners, ""), func() ([]models.Banner, error) {
		return s.repos.Banners.ListActive(ctx)
	})
}

// ListRecommendations returns active recommendation cards in display order
func (s *ContentService) ListRecommendations(ctx context.Context) ([]models.RecommendationCard, error) {
	return cached(ctx, s, cacheKey(KindRecommendations, ""), func() ([]models.RecommendationCard, error) {
		return s.repos.Recommendations.ListActive(ctx)
	})
}

// --- events ---

func (s *ContentService) AdminListEvents(ctx context.Context) ([]models.Event, error) {
	return s.repos.Events.List(ctx, repository.OrderBy("starts_at DESC"))
}

func (s *ContentService) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	e, err := s.repos.Events.Get(ctx, id)
	return e, notFound(err, ErrEventNotFound)
}

func applyEvent(e *models.Event, req *models.EventRequest) error {
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		return ErrInvalidEventTime
	}
	e.Title = strings.TrimSpace(req.Title)
	e.Description = req.Description
	e.Location = strings.TrimSpace(req.Location)
	e.StartsAt = req.StartsAt
	e.EndsAt = req.EndsAt
	e.ImageURL = req.ImageURL
	e.RegistrationURL = req.RegistrationURL
	e.IsPublished = req.IsPublished
	return nil
}

func (s *ContentService) CreateEvent(ctx context.Context, req *models.EventRequest) (*models.Event, error) {
	var e models.Event
	if err := applyEvent(&e, req); err != nil {
		return nil, err
	}
	if err := s.repos.Events.Create(ctx, &e); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindEvents)
	return &e, nil
}

func (s *ContentService) UpdateEvent(ctx context.Context, id uint, req *models.EventRequest) (*models.Event, error) {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyEvent(e, req); err != nil {
		return nil, err
	}
	if err := s.repos.Events.Save(ctx, e); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindEvents)
	return e, nil
}

func (s *ContentService) DeleteEvent(ctx context.Context, id uint) error {
	if err := s.repos.Events.Delete(ctx, id); err != nil {
		return notFound(err, ErrEventNotFound)
	}
	s.invalidate(ctx, KindEvents)
	return nil
}

// --- resources ---

func (s *ContentService) AdminListResources(ctx context.Context) ([]models.Resource, error) {
	return s.repos.Resources.List(ctx, repository.OrderBy("category ASC, title ASC"))
}

func (s *ContentService) GetResource(ctx context.Context, id uint) (*models.Resource, error) {
	r, err := s.repos.Resources.Get(ctx, id)
	return r, notFound(err, ErrResourceNotFound)
}

func applyResource(r *models.Resource, req *models.ResourceRequest) {
	r.Title = strings.TrimSpace(req.Title)
	r.Description = req.Description
	r.Category = strings.ToLower(strings.TrimSpace(req.Category))
	r.URL = req.URL
	r.ImageURL = req.ImageURL
	r.IsPublished = req.IsPublished
}

func (s *ContentService) CreateResource(ctx context.Context, req *models.ResourceRequest) (*models.Resource, error) {
	var r models.Resource
	applyResource(&r, req)
	if err := s.repos.Resources.Create(ctx, &r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindResources)
	return &r, nil
}

func (s *ContentService) UpdateResource(ctx context.Context, id uint, req *models.ResourceRequest) (*models.Resource, error) {
	r, err := s.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	applyResource(r, req)
	if err := s.repos.Resources.Save(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindResources)
	return r, nil
}

func (s *ContentService) DeleteResource(ctx context.Context, id uint) error {
	if err := s.repos.Resources.Delete(ctx, id); err != nil {
		return notFound(err, ErrResourceNotFound)
	}
	s.invalidate(ctx, KindResources)
	return nil
}

// --- banners ---

func (s *ContentService) AdminListBanners(ctx context.Context) ([]models.Banner, error) {
	return s.repos.Banners.List(ctx, repository.OrderBy("sort_order ASC, id ASC"))
}

func (s *ContentService) GetBanner(ctx context.Context, id uint) (*models.Banner, error) {
	b, err := s.repos.Banners.Get(ctx, id)
	return b, notFound(err, ErrBannerNotFound)
}

func applyBanner(b *models.Banner, req *models.BannerRequest) {
	b.Title = strings.TrimSpace(req.Title)
	b.Subtitle = strings.TrimSpace(req.Subtitle)
	b.ImageURL = req.ImageURL
	b.LinkURL = req.LinkURL
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
}

// CreateBanner appends the banner after the current last one. New banners are active unless stated otherwise.
func (s *ContentService) CreateBanner(ctx context.Context, req *models.BannerRequest) (*models.Banner, error) {
	b := models.Banner{IsActive: true}
	applyBanner(&b, req)

	order, err := s.repos.Banners.NextOrder(ctx)
	if err != nil {
		return nil, err
	}
	b.Order = order

	if err := s.repos.Banners.Create(ctx, &b); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindBanners)
	return &b, nil
}

func (s *ContentService) UpdateBanner(ctx context.Context, id uint, req *models.BannerRequest) (*models.Banner, error) {
	b, err := s.GetBanner(ctx, id)
	if err != nil {
		return nil, err
	}
	applyBanner(b, req)
	if err := s.repos.Banners.Save(ctx, b); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindBanners)
	return b, nil
}

func (s *ContentService) DeleteBanner(ctx context.Context, id uint) error {
	if err := s.repos.Banners.Delete(ctx, id); err != nil {
		return notFound(err, ErrBannerNotFound)
	}
	s.invalidate(ctx, KindBanners)
	return nil
}

// ReorderBanners sets the display order to the order of ids, which must
// name every banner exactly once
func (s *ContentService) ReorderBanners(ctx context.Context, ids []uint) ([]models.Banner, error) {
	if err := s.repos.Banners.Reorder(ctx, ids); err != nil {
		if errors.Is(err, repository.ErrOrderMismatch) {
			return nil, ErrInvalidOrder
		}
		return nil, err
	}
	s.invalidate(ctx, KindBanners)
	return s.AdminListBanners(ctx)
}

// --- recommendation cards ---

func (s *ContentService) AdminListRecommendations(ctx context.Context) ([]models.RecommendationCard, error) {
	return s.repos.Recommendations.List(ctx, repository.OrderBy("sort_order ASC, id ASC"))
}

func (s *ContentService) GetRecommendation(ctx context.Context, id uint) (*models.RecommendationCard, error) {
	r, err := s.repos.Recommendations.Get(ctx, id)
	return r, notFound(err, ErrRecommendationNotFound)
}

func applyRecommendation(r *models.RecommendationCard, req *models.RecommendationCardRequest) {
	r.Title = strings.TrimSpace(req.Title)
	r.Description = strings.TrimSpace(req.Description)
	r.Href = strings.TrimSpace(req.Href)
	r.Icon = req.Icon
	r.Order = req.Order
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}
}

func (s *ContentService) CreateRecommendation(ctx context.Context, req *models.RecommendationCardRequest) (*models.RecommendationCard, error) {
	r := models.RecommendationCard{IsActive: true}
	applyRecommendation(&r, req)
	if err := s.repos.Recommendations.Create(ctx, &r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindRecommendations)
	return &r, nil
}

func (s *ContentService) UpdateRecommendation(ctx context.Context, id uint, req *models.RecommendationCardRequest) (*models.RecommendationCard, error) {
	r, err := s.GetRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}
	applyRecommendation(r, req)
	if err := s.repos.Recommendations.Save(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, KindRecommendations)
	return r, nil
}

func (s *ContentService) DeleteRecommendation(ctx context.Context, id uint) error {
	if err := s.repos.Recommendations.Delete(ctx, id); err != nil {
		return notFound(err, ErrRecommendationNotFound)
	}
	s.invalidate(ctx, KindRecommendations)
	return nil
}
