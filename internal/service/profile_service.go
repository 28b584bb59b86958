package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"model-viewer-go/internal/model"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/lock"
	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/token"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExportVersion 是导出快照的格式版本。
const ExportVersion = "1.0.0"

const defaultProfileLock = "profile:default"

// LightsInput 是灯光设置的部分输入。
type LightsInput struct {
	AmbientIntensity     *float64    `json:"ambientIntensity" validate:"omitempty,min=0,max=1"`
	DirectionalIntensity *float64    `json:"directionalIntensity" validate:"omitempty,min=0,max=2"`
	DirectionalPosition  *model.Vec3 `json:"directionalPosition"`
}

// AnnotationInput 是一条标注的输入。
type AnnotationInput struct {
	Position    model.Vec3 `json:"position"`
	Title       string     `json:"title" validate:"required,min=1,max=50"`
	Description string     `json:"description" validate:"max=500"`
	Color       *string    `json:"color" validate:"omitempty,viewercolor"`
	Visible     *bool      `json:"visible"`
}

// ProfileInput 是保存或更新查看器配置时的输入，nil 字段表示未提供。
type ProfileInput struct {
	AssetRef        *string                `json:"modelId"`
	BackgroundColor *string                `json:"backgroundColor" validate:"omitempty,viewercolor"`
	MaterialColor   *string                `json:"materialColor" validate:"omitempty,viewercolor"`
	WireframeMode   *bool                  `json:"wireframeMode"`
	ShowGrid        *bool                  `json:"showGrid"`
	Environment     *string                `json:"environment" validate:"omitempty,viewerenv"`
	CameraPosition  *model.Vec3            `json:"cameraPosition"`
	CameraFOV       *float64               `json:"cameraFOV" validate:"omitempty,min=10,max=120"`
	Lights          *LightsInput           `json:"lights"`
	ShowAxes        *bool                  `json:"showAxes"`
	ShowStats       *bool                  `json:"showStats"`
	AutoRotate      *bool                  `json:"autoRotate"`
	AutoRotateSpeed *float64               `json:"autoRotateSpeed" validate:"omitempty,min=0.1,max=10"`
	Annotations     *[]AnnotationInput     `json:"annotations" validate:"omitempty,dive"`
	CustomSettings  map[string]interface{} `json:"customSettings"`
	IsTemplate      *bool                  `json:"isTemplate"`
	TemplateName    *string                `json:"templateName" validate:"omitempty,max=100"`
}

// ProfileService 接口定义了查看器配置的业务操作。所有会话相关操作都显式接收 sessionID。
type ProfileService interface {
	Save(ctx context.Context, sessionID string, in ProfileInput) (*model.ViewerProfile, error)
	Get(ctx context.Context, id string) (*model.ViewerProfile, error)
	// LatestForSession 在会话没有配置时返回 (nil, nil)。
	LatestForSession(ctx context.Context, sessionID string) (*model.ViewerProfile, error)
	// GetLatest 在会话没有配置时回退到默认配置，第二个返回值表示是否使用了默认配置。
	GetLatest(ctx context.Context, sessionID string) (*model.ViewerProfile, bool, error)
	ListForSession(ctx context.Context, sessionID string) ([]model.ViewerProfile, error)
	Update(ctx context.Context, id string, in ProfileInput) (*model.ViewerProfile, error)
	Delete(ctx context.Context, id string) (*model.ViewerProfile, error)
	GetOrCreateDefault(ctx context.Context) (*model.ViewerProfile, error)
	Export(ctx context.Context, sessionID string) (*model.ProfileSnapshot, error)
	Import(ctx context.Context, sessionID string, snapshot model.ProfileSnapshot) (*model.ViewerProfile, error)
}

type profileService struct {
	profiles repository.ProfileRepository
	assets   repository.AssetRepository
	locker   lock.Locker
	now      func() time.Time

	// defaultMu 在进程内串行化默认配置的创建，locker 负责跨实例
	defaultMu sync.Mutex
}

// NewProfileService 创建一个新的 ProfileService 实例。
func NewProfileService(profiles repository.ProfileRepository, assets repository.AssetRepository, locker lock.Locker) ProfileService {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &profileService{
		profiles: profiles,
		assets:   assets,
		locker:   locker,
		now:      time.Now,
	}
}

// Save 校验输入并创建一条新的配置。
func (s *profileService) Save(ctx context.Context, sessionID string, in ProfileInput) (*model.ViewerProfile, error) {
	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	profile := model.BaselineProfile()
	applyInput(&profile, in)
	profile.SessionID = sessionID
	profile.LastAccessed = s.now()
	ensureShareableLink(&profile)

	if err := s.profiles.Create(ctx, &profile); err != nil {
		log.Errorf("[ProfileService] 保存配置失败, session: %s, err: %v", sessionID, err)
		return nil, persistenceFailure("Failed to save settings", err)
	}
	log.Infof("[ProfileService] 配置已保存, id: %s, session: %s, template: %t", profile.ID, sessionID, profile.IsTemplate)
	return &profile, nil
}

// Get 按 ID 读取配置并更新最近访问时间。
func (s *profileService) Get(ctx context.Context, id string) (*model.ViewerProfile, error) {
	profile, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "Settings not found")
	}
	now := s.now()
	if err := s.profiles.Touch(ctx, id, now); err != nil {
		return nil, mapRepoError(err, "Settings not found")
	}
	profile.LastAccessed = now
	return profile, nil
}

func (s *profileService) LatestForSession(ctx context.Context, sessionID string) (*model.ViewerProfile, error) {
	profile, err := s.profiles.LatestForSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceFailure("Failed to fetch settings", err)
	}
	return profile, nil
}

func (s *profileService) GetLatest(ctx context.Context, sessionID string) (*model.ViewerProfile, bool, error) {
	profile, err := s.LatestForSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if profile != nil {
		return profile, false, nil
	}
	def, err := s.GetOrCreateDefault(ctx)
	if err != nil {
		return nil, false, err
	}
	return def, true, nil
}

func (s *profileService) ListForSession(ctx context.Context, sessionID string) ([]model.ViewerProfile, error) {
	profiles, err := s.profiles.ListForSession(ctx, sessionID)
	if err != nil {
		return nil, persistenceFailure("Failed to fetch session settings", err)
	}
	if profiles == nil {
		profiles = []model.ViewerProfile{}
	}
	return profiles, nil
}

// Update 对已有配置执行部分更新。modelId 为空字符串时解除与资产的关联。
func (s *profileService) Update(ctx context.Context, id string, in ProfileInput) (*model.ViewerProfile, error) {
	profile, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "Settings not found")
	}
	if in.AssetRef != nil && profile.AssetRef != nil && *in.AssetRef == *profile.AssetRef {
		// 关联未变化时不再校验资产是否存在
		in.AssetRef = nil
	}
	if in.IsTemplate != nil && *in.IsTemplate && in.TemplateName == nil && profile.TemplateName != "" {
		name := profile.TemplateName
		in.TemplateName = &name
	}
	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	applyInput(profile, in)
	profile.LastAccessed = s.now()
	ensureShareableLink(profile)

	if err := s.profiles.Save(ctx, profile); err != nil {
		log.Errorf("[ProfileService] 更新配置失败, id: %s, err: %v", id, err)
		return nil, persistenceFailure("Failed to update settings", err)
	}
	return profile, nil
}

func (s *profileService) Delete(ctx context.Context, id string) (*model.ViewerProfile, error) {
	profile, err := s.profiles.Delete(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "Settings not found")
	}
	log.Infof("[ProfileService] 配置已删除, id: %s", id)
	return profile, nil
}

// GetOrCreateDefault 返回唯一的默认配置，不存在时以固定主键创建。
// 进程内互斥锁、Redis 锁和主键冲突忽略共同保证并发首次访问时只会存在一份默认配置。
func (s *profileService) GetOrCreateDefault(ctx context.Context) (*model.ViewerProfile, error) {
	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	if def, err := s.profiles.FindDefault(ctx); err == nil {
		return def, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistenceFailure("Failed to fetch default settings", err)
	}

	release, err := s.locker.Acquire(ctx, defaultProfileLock)
	if err != nil {
		log.Warnf("[ProfileService] 获取默认配置锁失败，依赖主键约束继续: %v", err)
	} else {
		defer release()
	}

	def := model.BaselineProfile()
	def.ID = model.DefaultProfileID
	def.IsDefault = true
	def.TemplateName = model.DefaultTemplateName
	def.LastAccessed = s.now()
	created, err := s.profiles.CreateIfAbsent(ctx, &def)
	if err != nil {
		return nil, persistenceFailure("Failed to create default settings", err)
	}
	if created {
		log.Info("[ProfileService] 已创建默认配置")
	}
	stored, err := s.profiles.Get(ctx, model.DefaultProfileID)
	if err != nil {
		return nil, persistenceFailure("Failed to fetch default settings", err)
	}
	return stored, nil
}

// Export 导出会话最新的配置，不含身份字段。
func (s *profileService) Export(ctx context.Context, sessionID string) (*model.ProfileSnapshot, error) {
	profile, err := s.LatestForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, notFound("No settings found to export")
	}
	snap := profile.Snapshot()
	snap.ExportDate = s.now().UTC().Format(time.RFC3339)
	snap.Version = ExportVersion
	return &snap, nil
}

// Import 将快照保存为会话的一条新配置，导出元数据会被丢弃，导入的配置不会成为模板。
func (s *profileService) Import(ctx context.Context, sessionID string, snapshot model.ProfileSnapshot) (*model.ViewerProfile, error) {
	snapshot.ExportDate = ""
	snapshot.Version = ""
	return s.Save(ctx, sessionID, snapshotInput(snapshot))
}

func (s *profileService) validateInput(ctx context.Context, in ProfileInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.IsTemplate != nil && *in.IsTemplate && (in.TemplateName == nil || strings.TrimSpace(*in.TemplateName) == "") {
		return validationError("Validation failed", FieldError{Field: "templateName", Message: "templateName is required for templates"})
	}
	if in.AssetRef != nil && *in.AssetRef != "" {
		return checkAssetExists(ctx, s.assets, *in.AssetRef)
	}
	return nil
}

// checkAssetExists 校验被引用的资产在保存时存在。
func checkAssetExists(ctx context.Context, assets repository.AssetRepository, assetID string) error {
	ok, err := assets.Exists(ctx, assetID)
	if err != nil {
		return persistenceFailure("Failed to verify model", err)
	}
	if !ok {
		return newError(KindAssetNotFound, "Model not found")
	}
	return nil
}

// ensureShareableLink 仅为模板生成一次分享链接。
func ensureShareableLink(p *model.ViewerProfile) {
	if p.IsTemplate && p.ShareableLink == "" {
		p.ShareableLink = "/view/" + token.GenerateRandomString(6)
	}
}

func applyInput(p *model.ViewerProfile, in ProfileInput) {
	if in.AssetRef != nil {
		if *in.AssetRef == "" {
			p.AssetRef = nil
		} else {
			ref := *in.AssetRef
			p.AssetRef = &ref
		}
	}
	if in.BackgroundColor != nil {
		p.BackgroundColor = *in.BackgroundColor
	}
	if in.MaterialColor != nil {
		p.MaterialColor = *in.MaterialColor
	}
	if in.WireframeMode != nil {
		p.WireframeMode = *in.WireframeMode
	}
	if in.ShowGrid != nil {
		p.ShowGrid = *in.ShowGrid
	}
	if in.Environment != nil {
		p.Environment = *in.Environment
	}
	if in.CameraPosition != nil {
		p.CameraPosition = datatypes.NewJSONType(*in.CameraPosition)
	}
	if in.CameraFOV != nil {
		p.CameraFOV = *in.CameraFOV
	}
	if in.Lights != nil {
		lights := p.Lights.Data()
		if in.Lights.AmbientIntensity != nil {
			lights.AmbientIntensity = *in.Lights.AmbientIntensity
		}
		if in.Lights.DirectionalIntensity != nil {
			lights.DirectionalIntensity = *in.Lights.DirectionalIntensity
		}
		if in.Lights.DirectionalPosition != nil {
			lights.DirectionalPosition = *in.Lights.DirectionalPosition
		}
		p.Lights = datatypes.NewJSONType(lights)
	}
	if in.ShowAxes != nil {
		p.ShowAxes = *in.ShowAxes
	}
	if in.ShowStats != nil {
		p.ShowStats = *in.ShowStats
	}
	if in.AutoRotate != nil {
		p.AutoRotate = *in.AutoRotate
	}
	if in.AutoRotateSpeed != nil {
		p.AutoRotateSpeed = *in.AutoRotateSpeed
	}
	if in.Annotations != nil {
		annotations := make([]model.Annotation, 0, len(*in.Annotations))
		for _, a := range *in.Annotations {
			ann := model.Annotation{
				Position:    a.Position,
				Title:       strings.TrimSpace(a.Title),
				Description: a.Description,
				Color:       model.DefaultAnnotationColor,
				Visible:     true,
			}
			if a.Color != nil {
				ann.Color = *a.Color
			}
			if a.Visible != nil {
				ann.Visible = *a.Visible
			}
			annotations = append(annotations, ann)
		}
		p.Annotations = datatypes.NewJSONType(annotations)
	}
	if in.CustomSettings != nil {
		p.CustomSettings = datatypes.JSONMap(copyMap(in.CustomSettings))
	}
	if in.IsTemplate != nil {
		p.IsTemplate = *in.IsTemplate
	}
	if in.TemplateName != nil {
		p.TemplateName = strings.TrimSpace(*in.TemplateName)
	}
}

// snapshotInput 将导出快照转换为完整的输入，模板相关字段不会被带入。
func snapshotInput(snap model.ProfileSnapshot) ProfileInput {
	annotations := make([]AnnotationInput, 0, len(snap.Annotations))
	for _, a := range snap.Annotations {
		in := AnnotationInput{
			Position:    a.Position,
			Title:       a.Title,
			Description: a.Description,
		}
		// 空颜色按缺省处理
		if a.Color != "" {
			color := a.Color
			in.Color = &color
		}
		visible := a.Visible
		in.Visible = &visible
		annotations = append(annotations, in)
	}
	lights := snap.Lights
	notTemplate := false
	return ProfileInput{
		AssetRef:        snap.AssetRef,
		BackgroundColor: &snap.BackgroundColor,
		MaterialColor:   &snap.MaterialColor,
		WireframeMode:   &snap.WireframeMode,
		ShowGrid:        &snap.ShowGrid,
		Environment:     &snap.Environment,
		CameraPosition:  &snap.CameraPosition,
		CameraFOV:       &snap.CameraFOV,
		Lights: &LightsInput{
			AmbientIntensity:     &lights.AmbientIntensity,
			DirectionalIntensity: &lights.DirectionalIntensity,
			DirectionalPosition:  &lights.DirectionalPosition,
		},
		ShowAxes:        &snap.ShowAxes,
		ShowStats:       &snap.ShowStats,
		AutoRotate:      &snap.AutoRotate,
		AutoRotateSpeed: &snap.AutoRotateSpeed,
		Annotations:     &annotations,
		CustomSettings:  snap.CustomSettings,
		IsTemplate:      &notTemplate,
	}
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
