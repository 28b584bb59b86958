package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"model-viewer-go/internal/config"
	"model-viewer-go/internal/model"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/database"
	"model-viewer-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
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
	return nil, 0, args.Error(2)
}

func newAssetRepo(t *testing.T) repository.AssetRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "pipeline.db")},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Asset{}))
	return repository.NewAssetRepository(db)
}

func TestProcessor_Process(t *testing.T) {
	ctx := context.Background()
	repo := newAssetRepo(t)
	asset := &model.Asset{
		Name:         "Old Red Chair",
		OriginalName: "chair.glb",
		StorageKey:   "chair_1.glb",
		Format:       model.FormatGLB,
		Size:         10,
		IsPublic:     true,
		Tags:         datatypes.NewJSONType([]string{"old", "red", "chair"}),
	}
	require.NoError(t, repo.Create(ctx, asset))

	tests := []struct {
		name        string
		event       tasks.AssetEvent
		setup       func(*MockIndexer)
		expectError bool
	}{
		{
			name:  "ingested asset is indexed",
			event: tasks.NewAssetEvent(tasks.AssetIngested, asset.ID),
			setup: func(m *MockIndexer) {
				m.On("IndexAsset", mock.Anything, mock.MatchedBy(func(doc model.AssetSearchDocument) bool {
					return doc.AssetID == asset.ID && doc.Name == "Old Red Chair" && len(doc.Tags) == 3
				})).Return(nil)
			},
		},
		{
			name:  "updated event for missing asset removes document",
			event: tasks.NewAssetEvent(tasks.AssetUpdated, "gone"),
			setup: func(m *MockIndexer) {
				m.On("DeleteAsset", mock.Anything, "gone").Return(nil)
			},
		},
		{
			name:  "deleted asset is removed",
			event: tasks.NewAssetEvent(tasks.AssetDeleted, asset.ID),
			setup: func(m *MockIndexer) {
				m.On("DeleteAsset", mock.Anything, asset.ID).Return(nil)
			},
		},
		{
			name:  "index failure is returned for retry",
			event: tasks.NewAssetEvent(tasks.AssetIngested, asset.ID),
			setup: func(m *MockIndexer) {
				m.On("IndexAsset", mock.Anything, mock.Anything).Return(errors.New("es down"))
			},
			expectError: true,
		},
		{
			name:  "unknown event is skipped",
			event: tasks.NewAssetEvent("asset.archived", asset.ID),
			setup: func(m *MockIndexer) {},
		},
		{
			name:        "missing asset id",
			event:       tasks.AssetEvent{Type: tasks.AssetIngested},
			setup:       func(m *MockIndexer) {},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indexer := new(MockIndexer)
			tt.setup(indexer)

			err := NewProcessor(repo, indexer).Process(ctx, tt.event)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			indexer.AssertExpectations(t)
		})
	}
}

func TestInlinePublisher(t *testing.T) {
	indexer := new(MockIndexer)
	indexer.On("DeleteAsset", mock.Anything, "a1").Return(nil)

	pub := NewInlinePublisher(NewProcessor(newAssetRepo(t), indexer))
	require.NoError(t, pub.Publish(context.Background(), tasks.NewAssetEvent(tasks.AssetDeleted, "a1")))
	indexer.AssertExpectations(t)
}
