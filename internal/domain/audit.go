package domain

import "time"

// Audit 管理操作的追加式记录
type Audit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Actor     string    `gorm:"size:150;not null;index" json:"actor"`
	Action    string    `gorm:"size:64;not null;index" json:"action"`
	Target    *string   `gorm:"size:255" json:"target"`
	Detail    *string   `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Audit) TableName() string { return "audits" }

const (
	AuditUpdateUser  = "update_user"
	AuditPromoteUser = "promote_user"
)

// Models 自动迁移顺序（被引用的表在前）
func Models() []any {
	return []any{&User{}, &Item{}, &Comment{}, &Audit{}}
}
