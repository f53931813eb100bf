package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/cache"
	"mindcare/backend/pkg/logger"
)

func newTestContentService(t *testing.T, db *gorm.DB) (*ContentService, *cache.Cache) {
	t.Helper()
	store := cache.NewCache(time.Minute, time.Minute, 100)
	t.Cleanup(store.Close)
	svc := NewContentService(ContentRepositories{
		Events:          repository.NewGormEventRepository(db),
		Resources:       repository.NewGormResourceRepository(db),
		Banners:         repository.NewGormBannerRepository(db),
		Recommendations: repository.NewGormRecommendationRepository(db),
	}, store, time.Minute, logger.Discard())
	return svc, store
}

func TestPublicListsAreCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, store := newTestContentService(t, db)

	_, err := svc.CreateResource(ctx, &models.ResourceRequest{Title: "Breathing", Category: "Anxiety", URL: "https://example.com/b", IsPublished: true})
	require.NoError(t, err)

	list, err := svc.ListResources(ctx, "anxiety")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "anxiety", list[0].Category)
	assert.Equal(t, 1, store.Count())

	// a write behind the service's back is not visible until invalidation
	require.NoError(t, db.Create(&models.Resource{Title: "Sleep", Category: "anxiety", URL: "https://example.com/s", IsPublished: true}).Error)
	list, err = svc.ListResources(ctx, "ANXIETY")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.CreateResource(ctx, &models.ResourceRequest{Title: "Draft", Category: "anxiety", URL: "https://example.com/d"})
	require.NoError(t, err)
	assert.Zero(t, store.Count())

	list, err = svc.ListResources(ctx, "anxiety")
	require.NoError(t, err)
	require.Len(t, list, 2, "drafts stay hidden")
	assert.Equal(t, "Breathing", list[0].Title)
	assert.Equal(t, "Sleep", list[1].Title)
}

func TestEventsOrderingAndDrafts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newTestContentService(t, db)
	now := time.Now().UTC()

	past, err := svc.CreateEvent(ctx, &models.EventRequest{Title: "past", StartsAt: now.Add(-48 * time.Hour), IsPublished: true})
	require.NoError(t, err)
	later, err := svc.CreateEvent(ctx, &models.EventRequest{Title: "later", StartsAt: now.Add(72 * time.Hour), IsPublished: true})
	require.NoError(t, err)
	soon, err := svc.CreateEvent(ctx, &models.EventRequest{Title: "soon", StartsAt: now.Add(24 * time.Hour), IsPublished: true})
	require.NoError(t, err)
	draft, err := svc.CreateEvent(ctx, &models.EventRequest{Title: "draft", StartsAt: now.Add(time.Hour)})
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []uint{soon.ID, later.ID, past.ID}, []uint{events[0].ID, events[1].ID, events[2].ID})

	_, err = svc.GetPublishedEvent(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	got, err := svc.GetEvent(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Title)

	ends := now.Add(-time.Hour)
	_, err = svc.CreateEvent(ctx, &models.EventRequest{Title: "bad", StartsAt: now, EndsAt: &ends})
	assert.ErrorIs(t, err, ErrInvalidEventTime)

	assert.ErrorIs(t, svc.DeleteEvent(ctx, 9999), ErrEventNotFound)
	require.NoError(t, svc.DeleteEvent(ctx, past.ID))
	events, err = svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestBannersAppendAndReorder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newTestContentService(t, db)

	inactive := false
	var ids []uint
	for i, title := range []string{"one", "two", "three"} {
		req := &models.BannerRequest{Title: title, ImageURL: "https://example.com/b.png"}
		if i == 1 {
			req.IsActive = &inactive
		}
		b, err := svc.CreateBanner(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, i, b.Order)
		ids = append(ids, b.ID)
	}

	active, err := svc.ListBanners(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	reordered, err := svc.ReorderBanners(ctx, []uint{ids[2], ids[0], ids[1]})
	require.NoError(t, err)
	require.Len(t, reordered, 3)
	assert.Equal(t, ids[2], reordered[0].ID)
	assert.Equal(t, 0, reordered[0].Order)
	assert.Equal(t, ids[1], reordered[2].ID)

	active, err = svc.ListBanners(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[2], active[0].ID, "reorder invalidates the cached list")

	for _, bad := range [][]uint{
		{ids[0], ids[1]},
		{ids[0], ids[1], ids[2], 999},
		{ids[0], ids[0], ids[1]},
		{},
	} {
		_, err := svc.ReorderBanners(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidOrder, "%v", bad)
	}

	after, err := svc.AdminListBanners(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[2], after[0].ID, "rejected reorders change nothing")
}

func TestRecommendationCrud(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newTestContentService(t, db)

	card, err := svc.CreateRecommendation(ctx, &models.RecommendationCardRequest{Title: "Journal", Href: "/journal", Order: 2})
	require.NoError(t, err)
	assert.True(t, card.IsActive)

	off := false
	updated, err := svc.UpdateRecommendation(ctx, card.ID, &models.RecommendationCardRequest{Title: "Journal", Href: "/journal", IsActive: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	cards, err := svc.ListRecommendations(ctx)
	require.NoError(t, err)
	assert.Empty(t, cards)
	assert.NotNil(t, cards)

	_, err = svc.UpdateRecommendation(ctx, 999, &models.RecommendationCardRequest{Title: "x", Href: "/x"})
	assert.ErrorIs(t, err, ErrRecommendationNotFound)
	require.NoError(t, svc.DeleteRecommendation(ctx, card.ID))
	assert.ErrorIs(t, svc.DeleteRecommendation(ctx, card.ID), ErrRecommendationNotFound)
}
