package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ContractorModel 承包商数据模型
// 核心只读消费: 记录由外部身份系统维护
type ContractorModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);index" json:"email"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone"`
	Active    bool      `gorm:"not null;default:true;index" json:"active"`
	Verified  bool      `gorm:"not null;default:false" json:"verified"`
	Skills    string    `gorm:"type:text" json:"-"` // JSON 数组的技能标签
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (ContractorModel) TableName() string {
	return "contractors"
}

// Validate 验证承包商模型
func (c *ContractorModel) Validate() error {
	if c.ID == "" {
		return errors.New("contractor ID is required")
	}
	if c.Name == "" {
		return errors.New("contractor name is required")
	}
	return nil
}

// SkillList 返回技能标签列表
func (c *ContractorModel) SkillList() []string {
	if c.Skills == "" {
		return nil
	}
	var skills []string
	if err := json.Unmarshal([]byte(c.Skills), &skills); err != nil {
		return nil
	}
	return skills
}

// HasSkill 判断承包商是否持有指定技能
func (c *ContractorModel) HasSkill(skill string) bool {
	for _, s := range c.SkillList() {
		if s == skill {
			return true
		}
	}
	return false
}

// EncodeSkills 序列化技能标签列表
func EncodeSkills(skills []string) (string, error) {
	if len(skills) == 0 {
		return "", nil
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
