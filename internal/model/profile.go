package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DefaultProfileID 是全局唯一默认配置使用的固定主键。
const DefaultProfileID = "default"

// DefaultTemplateName 是模板列表中合成的默认模板名称。
const DefaultTemplateName = "Default"

// Vec3 是三维坐标。
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Lights 描述场景灯光。
type Lights struct {
	AmbientIntensity     float64 `json:"ambientIntensity"`
	DirectionalIntensity float64 `json:"directionalIntensity"`
	DirectionalPosition  Vec3    `json:"directionalPosition"`
}

// Annotation 是挂在模型表面某点上的标注。
type Annotation struct {
	Position    Vec3   `json:"position"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
	Visible     bool   `json:"visible"`
}

// DefaultAnnotationColor 是未指定颜色时标注使用的颜色。
const DefaultAnnotationColor = "#ff4757"

// UnmarshalJSON 为缺省的 color 和 visible 填充默认值。
func (a *Annotation) UnmarshalJSON(data []byte) error {
	type plain Annotation
	p := plain{Color: DefaultAnnotationColor, Visible: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Annotation(p)
	return nil
}

// ViewerProfile 定义了 viewer_profiles 表的 ORM 模型，保存一份查看器渲染配置。
type ViewerProfile struct {
	ID              string                           `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID       string                           `gorm:"type:varchar(512);index" json:"sessionId,omitempty"`
	AssetRef        *string                          `gorm:"column:asset_id;type:varchar(36);index" json:"modelId"`
	BackgroundColor string                           `gorm:"type:varchar(7);not null" json:"backgroundColor"`
	MaterialColor   string                           `gorm:"type:varchar(7);not null" json:"materialColor"`
	WireframeMode   bool                             `gorm:"not null;default:false" json:"wireframeMode"`
	ShowGrid        bool                             `gorm:"not null" json:"showGrid"`
	Environment     string                           `gorm:"type:varchar(16)" json:"environment"`
	CameraPosition  datatypes.JSONType[Vec3]         `gorm:"type:text" json:"cameraPosition"`
	CameraFOV       float64                          `gorm:"column:camera_fov;not null" json:"cameraFOV"`
	Lights          datatypes.JSONType[Lights]       `gorm:"type:text" json:"lights"`
	ShowAxes        bool                             `gorm:"not null;default:false" json:"showAxes"`
	ShowStats       bool                             `gorm:"not null;default:false" json:"showStats"`
	AutoRotate      bool                             `gorm:"not null;default:false" json:"autoRotate"`
	AutoRotateSpeed float64                          `gorm:"not null" json:"autoRotateSpeed"`
	Annotations     datatypes.JSONType[[]Annotation] `gorm:"type:text" json:"annotations"`
	CustomSettings  datatypes.JSONMap                `gorm:"type:text" json:"customSettings"`
	IsDefault       bool                             `gorm:"not null;default:false;index" json:"isDefault"`
	IsTemplate      bool                             `gorm:"not null;default:false;index" json:"isTemplate"`
	TemplateName    string                           `gorm:"type:varchar(100)" json:"templateName,omitempty"`
	ShareableLink   string                           `gorm:"type:varchar(64)" json:"shareableLink,omitempty"`
	LastAccessed    time.Time                        `gorm:"index" json:"lastAccessed"`
	CreatedAt       time.Time                        `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time                        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ViewerProfile) TableName() string {
	return "viewer_profiles"
}

// BaselineProfile 返回带有默认渲染参数的配置，ID 和会话信息由调用方填写。
func BaselineProfile() ViewerProfile {
	return ViewerProfile{
		BackgroundColor: "#f8fafc",
		MaterialColor:   "#3b82f6",
		ShowGrid:        true,
		CameraPosition:  datatypes.NewJSONType(Vec3{X: 5, Y: 5, Z: 5}),
		CameraFOV:       50,
		Lights: datatypes.NewJSONType(Lights{
			AmbientIntensity:     0.5,
			DirectionalIntensity: 1,
			DirectionalPosition:  Vec3{X: 10, Y: 10, Z: 5},
		}),
		AutoRotateSpeed: 2,
		Annotations:     datatypes.NewJSONType([]Annotation{}),
		CustomSettings:  datatypes.JSONMap{},
	}
}

// ProfileSnapshot 是导出/导入使用的配置快照，不含身份与时间戳字段。
type ProfileSnapshot struct {
	AssetRef        *string                `json:"modelId,omitempty"`
	BackgroundColor string                 `json:"backgroundColor"`
	MaterialColor   string                 `json:"materialColor"`
	WireframeMode   bool                   `json:"wireframeMode"`
	ShowGrid        bool                   `json:"showGrid"`
	Environment     string                 `json:"environment"`
	CameraPosition  Vec3                   `json:"cameraPosition"`
	CameraFOV       float64                `json:"cameraFOV"`
	Lights          Lights                 `json:"lights"`
	ShowAxes        bool                   `json:"showAxes"`
	ShowStats       bool                   `json:"showStats"`
	AutoRotate      bool                   `json:"autoRotate"`
	AutoRotateSpeed float64                `json:"autoRotateSpeed"`
	Annotations     []Annotation           `json:"annotations"`
	CustomSettings  map[string]interface{} `json:"customSettings"`
	ExportDate      string                 `json:"exportDate,omitempty"`
	Version         string                 `json:"version,omitempty"`
}

// Snapshot 导出配置的渲染字段。
func (p *ViewerProfile) Snapshot() ProfileSnapshot {
	annotations := p.Annotations.Data()
	if annotations == nil {
		annotations = []Annotation{}
	}
	custom := map[string]interface{}(p.CustomSettings)
	if custom == nil {
		custom = map[string]interface{}{}
	}
	return ProfileSnapshot{
		AssetRef:        p.AssetRef,
		BackgroundColor: p.BackgroundColor,
		MaterialColor:   p.MaterialColor,
		WireframeMode:   p.WireframeMode,
		ShowGrid:        p.ShowGrid,
		Environment:     p.Environment,
		CameraPosition:  p.CameraPosition.Data(),
		CameraFOV:       p.CameraFOV,
		Lights:          p.Lights.Data(),
		ShowAxes:        p.ShowAxes,
		ShowStats:       p.ShowStats,
		AutoRotate:      p.AutoRotate,
		AutoRotateSpeed: p.AutoRotateSpeed,
		Annotations:     annotations,
		CustomSettings:  custom,
	}
}

// TemplateSummary 是模板列表中的一项。
type TemplateSummary struct {
	ID              string     `json:"id,omitempty"`
	TemplateName    string     `json:"templateName"`
	BackgroundColor string     `json:"backgroundColor"`
	MaterialColor   string     `json:"materialColor"`
	Environment     string     `json:"environment"`
	IsDefault       bool       `json:"isDefault"`
	ShareableLink   string     `json:"shareableLink,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}
