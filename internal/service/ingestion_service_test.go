package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"model-viewer-go/internal/config"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/tasks"
	"model-viewer-go/pkg/thumbnail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testUploadConfig() config.UploadConfig {
	cfg := config.Default().Upload
	cfg.MaxFileSize = 64
	return cfg
}

func glbRequest(fileName string, content []byte) IngestRequest {
	return IngestRequest{
		Reader:   bytes.NewReader(content),
		FileName: fileName,
		MimeType: "model/gltf-binary",
		Size:     int64(len(content)),
		ClientIP: "127.0.0.1",
	}
}

func TestIngestionService_Ingest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAssetRepository(newTestDB(t))
	store, root := newTestStore(t)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e tasks.AssetEvent) bool {
		return e.Type == tasks.AssetIngested && e.AssetID != ""
	})).Return(nil)

	svc := NewIngestionService(repo, store, thumbnail.PlaceholderProvider{}, pub, testUploadConfig(), config.Default().Thumbnail)

	content := []byte("glTF-binary-content")
	asset, err := svc.Ingest(ctx, glbRequest("Old Red Chair.GLB", content))
	require.NoError(t, err)

	assert.Equal(t, "Old Red Chair", asset.Name)
	assert.Equal(t, "GLB", asset.Format)
	assert.EqualValues(t, len(content), asset.Size)
	assert.EqualValues(t, 1, asset.UploadCount)
	assert.True(t, asset.IsPublic)
	assert.Equal(t, []string{"old", "red", "chair"}, asset.TagList())
	assert.True(t, strings.HasPrefix(asset.URL, "/uploads/Old_Red_Chair_"))
	assert.True(t, strings.HasSuffix(asset.URL, ".glb"))
	assert.NotEmpty(t, asset.Metadata["blake2b"])
	assert.Equal(t, "Old Red Chair.GLB", asset.Metadata["originalName"])

	exists, err := store.Exists(ctx, asset.StorageKey)
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := repo.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.EqualValues(t, len(content), stored.Size)
	assert.Equal(t, 1, countFiles(t, root))
	pub.AssertExpectations(t)
}

func TestIngestionService_Tags(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAssetRepository(newTestDB(t))
	store, _ := newTestStore(t)
	svc := NewIngestionService(repo, store, thumbnail.PlaceholderProvider{}, nil, testUploadConfig(), config.Default().Thumbnail)

	asset, err := svc.Ingest(ctx, glbRequest("a an it.glb", []byte("x")))
	require.NoError(t, err)
	assert.Empty(t, asset.TagList())

	req := glbRequest("lamp.gltf", []byte("{}"))
	req.MimeType = "model/gltf+json"
	req.Name = strPtr("Desk-Lamp_desk lamp")
	req.Tags = []string{" Lighting ", "lamp", ""}
	req.IsPublic = boolPtr(false)
	asset, err = svc.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "GLTF", asset.Format)
	assert.False(t, asset.IsPublic)
	assert.Equal(t, []string{"desk", "lamp", "lighting"}, asset.TagList())
}

func TestDeriveTags(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"Old Red Chair", []string{"old", "red", "chair"}},
		{"a an it", []string{}},
		{"sci-fi_ship  SHIP", []string{"sci", "ship"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTags(tt.name))
		})
	}
}

func TestIngestionService_Rejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		req     IngestRequest
		wantErr error
	}{
		{
			name:    "mime type not allowed",
			req:     IngestRequest{Reader: strings.NewReader("x"), FileName: "a.glb", MimeType: "image/png", Size: 1},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "extension not allowed",
			req:     IngestRequest{Reader: strings.NewReader("x"), FileName: "a.obj", MimeType: "application/octet-stream", Size: 1},
			wantErr: ErrUnsupportedExtension,
		},
		{
			name:    "declared size too large",
			req:     IngestRequest{Reader: strings.NewReader("x"), FileName: "a.glb", MimeType: "model/gltf-binary", Size: 65},
			wantErr: ErrTooLarge,
		},
		{
			name:    "streamed size too large",
			req:     IngestRequest{Reader: bytes.NewReader(make([]byte, 100)), FileName: "a.glb", MimeType: "model/gltf-binary", Size: -1},
			wantErr: ErrTooLarge,
		},
		{
			name:    "empty declared name",
			req:     IngestRequest{Reader: strings.NewReader("x"), FileName: "a.glb", MimeType: "model/gltf-binary", Size: 1, Name: strPtr("   ")},
			wantErr: ErrValidation,
		},
		{
			name:    "empty file",
			req:     IngestRequest{Reader: strings.NewReader(""), FileName: "a.glb", MimeType: "model/gltf-binary", Size: -1},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			repo := repository.NewAssetRepository(db)
			store, root := newTestStore(t)
			svc := NewIngestionService(repo, store, thumbnail.PlaceholderProvider{}, nil, testUploadConfig(), config.Default().Thumbnail)

			_, err := svc.Ingest(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, countFiles(t, root), "no bytes may be left behind")

			var count int64
			require.NoError(t, db.Table("assets").Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestIngestionService_RollsBackOnIndexFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("create fails", func(t *testing.T) {
		repo := &failingAssetRepo{AssetRepository: repository.NewAssetRepository(newTestDB(t)), failCreate: true}
		store, root := newTestStore(t)
		svc := NewIngestionService(repo, store, thumbnail.PlaceholderProvider{}, nil, testUploadConfig(), config.Default().Thumbnail)

		_, err := svc.Ingest(ctx, glbRequest("chair.glb", []byte("data")))
		assert.ErrorIs(t, err, ErrPersistence)
		assert.True(t, errors.Is(err, errInjected))
		assert.Equal(t, 0, countFiles(t, root))
	})

	t.Run("finalize fails", func(t *testing.T) {
		db := newTestDB(t)
		repo := &failingAssetRepo{AssetRepository: repository.NewAssetRepository(db), failIncrement: true}
		store, root := newTestStore(t)
		svc := NewIngestionService(repo, store, thumbnail.PlaceholderProvider{}, nil, testUploadConfig(), config.Default().Thumbnail)

		_, err := svc.Ingest(ctx, glbRequest("chair.glb", []byte("data")))
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Equal(t, 0, countFiles(t, root))

		var count int64
		require.NoError(t, db.Table("assets").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestIngestionService_ThumbnailFailureUsesDefault(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAssetRepository(newTestDB(t))
	store, _ := newTestStore(t)

	thumbs := new(MockThumbnailProvider)
	thumbs.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("renderer down"))

	svc := NewIngestionService(repo, store, thumbs, nil, testUploadConfig(), config.Default().Thumbnail)
	asset, err := svc.Ingest(ctx, glbRequest("chair.glb", []byte("data")))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultThumbnailURL, asset.ThumbnailURL)
	thumbs.AssertExpectations(t)
}

func TestIngestionService_ConcurrentSameName(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAssetRepository(newTestDB(t))
	store, root := newTestStore(t)
	svc := NewIngestionService(repo, store, thumbnail.PlaceholderProvider{}, nil, testUploadConfig(), config.Default().Thumbnail)

	const n = 5
	keys := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			a, err := svc.Ingest(ctx, glbRequest("same.glb", []byte("data")))
			if err != nil {
				errs <- err
				return
			}
			keys <- a.StorageKey
		}()
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("ingest failed: %v", err)
		case k := <-keys:
			assert.False(t, seen[k])
			seen[k] = true
		}
	}
	assert.Equal(t, n, countFiles(t, root))
}
