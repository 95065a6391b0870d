package domain

import (
	"path"
	"time"
)

const DefaultCategory = "general"

type Item struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null;index" json:"title"`
	Category    string    `gorm:"size:64;not null;default:general;index" json:"category"`
	Description string    `gorm:"type:text;not null;default:''" json:"description"`
	FilePath    *string   `gorm:"size:512" json:"-"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `json:"-"`

	// 派生字段，不落库
	FileURL *string `gorm:"-" json:"file_url"`
}

func (Item) TableName() string { return "items" }

// WithFileURL 根据 FilePath 填充 FileURL（prefix 如 /uploads）
func (it *Item) WithFileURL(prefix string) *Item {
	if it.FilePath == nil || *it.FilePath == "" {
		it.FileURL = nil
		return it
	}
	u := path.Join(prefix, path.Base(*it.FilePath))
	it.FileURL = &u
	return it
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ItemID    uint      `gorm:"not null;index" json:"item_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Author    *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Comment) TableName() string { return "comments" }

// CategoryStats category -> count
type CategoryStats map[string]int64
