package handler

import (
	"context"

	"model-viewer-go/internal/model"
	"model-viewer-go/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockIngestionService is a mock implementation of service.IngestionService
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Ingest(ctx context.Context, req service.IngestRequest) (*model.Asset, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

// MockCatalogService is a mock implementation of service.CatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) List(ctx context.Context, params service.ListParams) (*service.AssetPage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssetPage), args.Error(1)
}

func (m *MockCatalogService) Get(ctx context.Context, id string) (*model.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockCatalogService) Download(ctx context.Context, id string) (*service.Download, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockCatalogService) Update(ctx context.Context, id string, params service.UpdateAssetParams) (*model.Asset, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockCatalogService) Delete(ctx context.Context, id string) (*model.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockCatalogService) Stats(ctx context.Context) (*service.CatalogStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CatalogStats), args.Error(1)
}

func (m *MockCatalogService) Aggregate(ctx context.Context) (model.CatalogSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.CatalogSummary), args.Error(1)
}

func (m *MockCatalogService) BreakdownByFormat(ctx context.Context) ([]model.FormatBreakdown, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FormatBreakdown), args.Error(1)
}

func (m *MockCatalogService) TopByField(ctx context.Context, field string, n int) ([]model.AssetSummary, error) {
	args := m.Called(ctx, field, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AssetSummary), args.Error(1)
}

// MockSearchService is a mock implementation of service.SearchService
type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, query string, page, limit int) (*service.AssetPage, error) {
	args := m.Called(ctx, query, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssetPage), args.Error(1)
}

// MockProfileService is a mock implementation of service.ProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Save(ctx context.Context, sessionID string, in service.ProfileInput) (*model.ViewerProfile, error) {
	args := m.Called(ctx, sessionID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}

func (m *MockProfileService) Get(ctx context.Context, id string) (*model.ViewerProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}

func (m *MockProfileService) LatestForSession(ctx context.Context, sessionID string) (*model.ViewerProfile, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}

func (m *MockProfileService) GetLatest(ctx context.Context, sessionID string) (*model.ViewerProfile, bool, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*model.ViewerProfile), args.Bool(1), args.Error(2)
}

func (m *MockProfileService) ListForSession(ctx context.Context, sessionID string) ([]model.ViewerProfile, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ViewerProfile), args.Error(1)
}

func (m *MockProfileService) Update(ctx context.Context, id string, in service.ProfileInput) (*model.ViewerProfile, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}

func (m *MockProfileService) Delete(ctx context.Context, id string) (*model.ViewerProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}

func (m *MockProfileService) GetOrCreateDefault(ctx context.Context) (*model.ViewerProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}

func (m *MockProfileService) Export(ctx context.Context, sessionID string) (*model.ProfileSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProfileSnapshot), args.Error(1)
}

func (m *MockProfileService) Import(ctx context.Context, sessionID string, snapshot model.ProfileSnapshot) (*model.ViewerProfile, error) {
	args := m.Called(ctx, sessionID, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}

// MockTemplateService is a mock implementation of service.TemplateService
type MockTemplateService struct {
	mock.Mock
}

func (m *MockTemplateService) List(ctx context.Context) ([]model.TemplateSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TemplateSummary), args.Error(1)
}

func (m *MockTemplateService) Instantiate(ctx context.Context, templateName, sessionID string, assetRef *string) (*model.ViewerProfile, error) {
	args := m.Called(ctx, templateName, sessionID, assetRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewerProfile), args.Error(1)
}
