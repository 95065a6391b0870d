package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"go-gin-gorm-cms/internal/core/database"
	"go-gin-gorm-cms/internal/domain"
)

type AuditRepo struct{ db *gorm.DB }

func NewAuditRepo(db *gorm.DB) *AuditRepo { return &AuditRepo{db: db} }

var _ domain.AuditRepository = (*AuditRepo)(nil)

// q 按字面子串匹配，LIKE 通配符需转义
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Append 在嵌套事务（savepoint）里写入，失败不会让外层事务作废
func (r *AuditRepo) Append(ctx context.Context, a *domain.Audit) error {
	return database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(a).Error
	})
}

func (r *AuditRepo) List(ctx context.Context, q domain.AuditQuery) ([]domain.Audit, int64, error) {
	tx := database.Conn(ctx, r.db).Model(&domain.Audit{})
	if s := strings.TrimSpace(q.Q); s != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		tx = tx.Where(
			"LOWER(actor) LIKE ? ESCAPE '!' OR LOWER(action) LIKE ? ESCAPE '!' OR "+
				"LOWER(COALESCE(target, '')) LIKE ? ESCAPE '!' OR LOWER(COALESCE(detail, '')) LIKE ? ESCAPE '!'",
			like, like, like, like,
		)
	}
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.Audit
	err := tx.Order("created_at DESC").Order("id DESC").
		Offset(q.Offset).Limit(q.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
