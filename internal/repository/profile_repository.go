package repository

import (
	"context"
	"strings"
	"time"

	"model-viewer-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 接口定义了查看器配置的持久化操作。
type ProfileRepository interface {
	Create(ctx context.Context, profile *model.ViewerProfile) error
	// CreateIfAbsent 在主键冲突时什么也不做，返回是否真正插入了记录。
	CreateIfAbsent(ctx context.Context, profile *model.ViewerProfile) (bool, error)
	Get(ctx context.Context, id string) (*model.ViewerProfile, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Save(ctx context.Context, profile *model.ViewerProfile) error
	Delete(ctx context.Context, id string) (*model.ViewerProfile, error)
	LatestForSession(ctx context.Context, sessionID string) (*model.ViewerProfile, error)
	ListForSession(ctx context.Context, sessionID string) ([]model.ViewerProfile, error)
	FindDefault(ctx context.Context) (*model.ViewerProfile, error)
	ListTemplates(ctx context.Context) ([]model.ViewerProfile, error)
	FindTemplateByName(ctx context.Context, name string) (*model.ViewerProfile, error)
}

// profileRepository 是 ProfileRepository 接口的 GORM 实现。
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *model.ViewerProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) CreateIfAbsent(ctx context.Context, profile *model.ViewerProfile) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(profile)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *profileRepository) Get(ctx context.Context, id string) (*model.ViewerProfile, error) {
	var profile model.ViewerProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Touch 更新 last_accessed，不改动 updated_at。
func (r *profileRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.ViewerProfile{}).
		Where("id = ?", id).
		UpdateColumn("last_accessed", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Save 整条覆盖一个已存在的配置。
func (r *profileRepository) Save(ctx context.Context, profile *model.ViewerProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *profileRepository) Delete(ctx context.Context, id string) (*model.ViewerProfile, error) {
	var profile model.ViewerProfile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.ViewerProfile{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// LatestForSession 返回会话最新创建的配置，模板和全局默认配置不参与。
func (r *profileRepository) LatestForSession(ctx context.Context, sessionID string) (*model.ViewerProfile, error) {
	var profile model.ViewerProfile
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_template = ? AND is_default = ?", sessionID, false, false).
		Order("created_at DESC").
		Order("id DESC").
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListForSession 按创建时间倒序返回会话的全部普通配置（不含模板和全局默认配置）。
func (r *profileRepository) ListForSession(ctx context.Context, sessionID string) ([]model.ViewerProfile, error) {
	var profiles []model.ViewerProfile
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_template = ? AND is_default = ?", sessionID, false, false).
		Order("created_at DESC").
		Order("id DESC").
		Find(&profiles).Error
	return profiles, err
}

func (r *profileRepository) FindDefault(ctx context.Context) (*model.ViewerProfile, error) {
	var profile model.ViewerProfile
	err := r.db.WithContext(ctx).
		Where("is_default = ?", true).
		Order("created_at ASC").
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListTemplates 按创建时间倒序返回全部模板。
func (r *profileRepository) ListTemplates(ctx context.Context) ([]model.ViewerProfile, error) {
	var profiles []model.ViewerProfile
	err := r.db.WithContext(ctx).
		Where("is_template = ?", true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&profiles).Error
	return profiles, err
}

// FindTemplateByName 不区分大小写地查找模板，同名时取最新创建的。
func (r *profileRepository) FindTemplateByName(ctx context.Context, name string) (*model.ViewerProfile, error) {
	var profile model.ViewerProfile
	err := r.db.WithContext(ctx).
		Where("is_template = ? AND LOWER(template_name) = ?", true, strings.ToLower(name)).
		Order("created_at DESC").
		Order("id DESC").
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
