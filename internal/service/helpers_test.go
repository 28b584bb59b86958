package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"model-viewer-go/internal/config"
	"model-viewer-go/internal/model"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/database"
	"model-viewer-go/pkg/storage"
	"model-viewer-go/pkg/tasks"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "service.db")},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Asset{}, &model.ViewerProfile{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) (*storage.DiskStore, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "uploads")
	store, err := storage.NewDiskStore(root)
	require.NoError(t, err)
	return store, root
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event tasks.AssetEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockThumbnailProvider is a mock implementation of thumbnail.Provider
type MockThumbnailProvider struct {
	mock.Mock
}

func (m *MockThumbnailProvider) Generate(ctx context.Context, location string) (string, error) {
	args := m.Called(ctx, location)
	return args.String(0), args.Error(1)
}

// failingAssetRepo wraps a real repository and fails selected operations.
type failingAssetRepo struct {
	repository.AssetRepository
	failCreate    bool
	failIncrement bool
}

var errInjected = errors.New("injected failure")

func (r *failingAssetRepo) Create(ctx context.Context, asset *model.Asset) error {
	if r.failCreate {
		return errInjected
	}
	return r.AssetRepository.Create(ctx, asset)
}

func (r *failingAssetRepo) IncrementField(ctx context.Context, id, field string, delta int64) (*model.Asset, error) {
	if r.failIncrement && field == repository.CounterUploads {
		return nil, errInjected
	}
	return r.AssetRepository.IncrementField(ctx, id, field, delta)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }
