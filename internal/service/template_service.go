package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"model-viewer-go/internal/model"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/log"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TemplateService 接口定义了模板的列出与实例化操作。
type TemplateService interface {
	List(ctx context.Context) ([]model.TemplateSummary, error)
	Instantiate(ctx context.Context, templateName, sessionID string, assetRef *string) (*model.ViewerProfile, error)
}

type templateService struct {
	profiles repository.ProfileRepository
	assets   repository.AssetRepository
	now      func() time.Time
}

// NewTemplateService 创建一个新的 TemplateService 实例。
func NewTemplateService(profiles repository.ProfileRepository, assets repository.AssetRepository) TemplateService {
	return &templateService{profiles: profiles, assets: assets, now: time.Now}
}

// defaultTemplate 是列表中合成的默认模板，只用于展示，不会被持久化。
func defaultTemplate() model.TemplateSummary {
	base := model.BaselineProfile()
	return model.TemplateSummary{
		TemplateName:    model.DefaultTemplateName,
		BackgroundColor: base.BackgroundColor,
		MaterialColor:   base.MaterialColor,
		Environment:     base.Environment,
		IsDefault:       true,
	}
}

// List 返回模板列表，合成的默认模板总在第一位，其后是按创建时间倒序的已保存模板。
func (s *templateService) List(ctx context.Context) ([]model.TemplateSummary, error) {
	templates, err := s.profiles.ListTemplates(ctx)
	if err != nil {
		log.Errorf("[TemplateService] 查询模板失败: %v", err)
		return nil, persistenceFailure("Failed to fetch templates", err)
	}
	out := make([]model.TemplateSummary, 0, len(templates)+1)
	out = append(out, defaultTemplate())
	for i := range templates {
		t := templates[i]
		out = append(out, model.TemplateSummary{
			ID:              t.ID,
			TemplateName:    t.TemplateName,
			BackgroundColor: t.BackgroundColor,
			MaterialColor:   t.MaterialColor,
			Environment:     t.Environment,
			ShareableLink:   t.ShareableLink,
			CreatedAt:       &templates[i].CreatedAt,
		})
	}
	return out, nil
}

// Instantiate 将名称匹配（不区分大小写）的已保存模板复制为会话的一条新配置。
// 合成的默认模板不在查找范围内。
func (s *templateService) Instantiate(ctx context.Context, templateName, sessionID string, assetRef *string) (*model.ViewerProfile, error) {
	name := strings.TrimSpace(templateName)
	tmpl, err := s.profiles.FindTemplateByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{Kind: KindTemplateNotFound, Message: "Template '" + name + "' not found"}
		}
		return nil, persistenceFailure("Failed to fetch template", err)
	}
	if assetRef != nil && *assetRef == "" {
		assetRef = nil
	}
	if assetRef != nil {
		if err := checkAssetExists(ctx, s.assets, *assetRef); err != nil {
			return nil, err
		}
	}

	clone := cloneProfile(tmpl)
	clone.SessionID = sessionID
	clone.AssetRef = assetRef
	clone.LastAccessed = s.now()

	if err := s.profiles.Create(ctx, &clone); err != nil {
		log.Errorf("[TemplateService] 从模板创建配置失败, template: %s, err: %v", name, err)
		return nil, persistenceFailure("Failed to create settings from template", err)
	}
	log.Infof("[TemplateService] 已从模板 '%s' 创建配置, id: %s, session: %s", tmpl.TemplateName, clone.ID, sessionID)
	return &clone, nil
}

// cloneProfile 复制渲染字段，身份、时间戳、分享链接和模板标记都不会被复制。
func cloneProfile(src *model.ViewerProfile) model.ViewerProfile {
	annotations := append([]model.Annotation(nil), src.Annotations.Data()...)
	if annotations == nil {
		annotations = []model.Annotation{}
	}
	return model.ViewerProfile{
		BackgroundColor: src.BackgroundColor,
		MaterialColor:   src.MaterialColor,
		WireframeMode:   src.WireframeMode,
		ShowGrid:        src.ShowGrid,
		Environment:     src.Environment,
		CameraPosition:  datatypes.NewJSONType(src.CameraPosition.Data()),
		CameraFOV:       src.CameraFOV,
		Lights:          datatypes.NewJSONType(src.Lights.Data()),
		ShowAxes:        src.ShowAxes,
		ShowStats:       src.ShowStats,
		AutoRotate:      src.AutoRotate,
		AutoRotateSpeed: src.AutoRotateSpeed,
		Annotations:     datatypes.NewJSONType(annotations),
		CustomSettings:  datatypes.JSONMap(copyMap(src.CustomSettings)),
	}
}
