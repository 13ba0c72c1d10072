package repository

import (
	"context"
	"errors"

	"github.com/bounce/dispatch-gin/internal/model"
	"gorm.io/gorm"
)

// ErrContractorNotFound 承包商不存在
var ErrContractorNotFound = errors.New("contractor not found")

// ContractorRepository 承包商仓储接口
// 核心只读消费承包商记录,写入由外部身份系统负责
type ContractorRepository interface {
	FindByID(ctx context.Context, id string) (*model.ContractorModel, error)
	Save(ctx context.Context, contractor *model.ContractorModel) error
}

// contractorRepository 承包商仓储实现
type contractorRepository struct {
	db *gorm.DB
}

// NewContractorRepository 创建承包商仓储
func NewContractorRepository(db *gorm.DB) ContractorRepository {
	return &contractorRepository{db: db}
}

// FindByID 根据 ID 查找承包商
func (r *contractorRepository) FindByID(ctx context.Context, id string) (*model.ContractorModel, error) {
	var contractor model.ContractorModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&contractor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractorNotFound
		}
		return nil, err
	}
	return &contractor, nil
}

// Save 保存承包商(用于迁移工具和测试夹具)
func (r *contractorRepository) Save(ctx context.Context, contractor *model.ContractorModel) error {
	return r.db.WithContext(ctx).Save(contractor).Error
}
