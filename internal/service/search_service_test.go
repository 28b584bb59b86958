package service

import (
	"context"
	"testing"

	"model-viewer-go/internal/model"
	"model-viewer-go/pkg/es"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIndexer is a mock implementation of es.Indexer
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexAsset(ctx context.Context, doc model.AssetSearchDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockIndexer) DeleteAsset(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIndexer) SearchAssets(ctx context.Context, query string, from, size int) ([]string, int64, error) {
	args := m.Called(ctx, query, from, size)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]string), args.Get(1).(int64), args.Error(2)
}

func TestSearchService_UsesIndexOrder(t *testing.T) {
	ctx := context.Background()
	catalog, repo, store := newCatalogFixture(t, nil)
	chair := seedAsset(t, repo, store, "red chair", model.FormatGLB, 3, true)
	table := seedAsset(t, repo, store, "red table", model.FormatGLB, 3, true)
	private := seedAsset(t, repo, store, "red secret", model.FormatGLB, 3, false)

	indexer := new(MockIndexer)
	indexer.On("SearchAssets", mock.Anything, "red", 0, 10).
		Return([]string{table.ID, "deleted-id", private.ID, chair.ID}, int64(4), nil)

	svc := NewSearchService(indexer, repo, catalog)
	page, err := svc.Search(ctx, "  red  ", 1, 0)
	require.NoError(t, err)
	require.Len(t, page.Assets, 2)
	assert.Equal(t, table.ID, page.Assets[0].ID)
	assert.Equal(t, chair.ID, page.Assets[1].ID)
	assert.EqualValues(t, 4, page.Pagination.Total)
	indexer.AssertExpectations(t)
}

func TestSearchService_FallsBackWhenIndexUnavailable(t *testing.T) {
	ctx := context.Background()
	catalog, repo, store := newCatalogFixture(t, nil)
	seedAsset(t, repo, store, "Blue Vase", model.FormatGLB, 3, true)
	seedAsset(t, repo, store, "Green Lamp", model.FormatGLB, 3, true)

	svc := NewSearchService(es.NoopIndexer{}, repo, catalog)
	page, err := svc.Search(ctx, "VASE", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Assets, 1)
	assert.Equal(t, "Blue Vase", page.Assets[0].Name)
}

func TestSearchService_ValidatesQuery(t *testing.T) {
	catalog, repo, _ := newCatalogFixture(t, nil)
	svc := NewSearchService(es.NoopIndexer{}, repo, catalog)

	for _, q := range []string{"", "   ", string(make([]byte, 51))} {
		_, err := svc.Search(context.Background(), q, 1, 10)
		assert.ErrorIs(t, err, ErrValidation)
	}
}
