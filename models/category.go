package models

import "time"

// Category organizes forum discussions. Rows are reference data managed out
// of band (seeded or edited by an operator), referenced by posts.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	Slug        string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Icon        string    `gorm:"size:50" json:"icon"`
	Color       string    `gorm:"size:7;default:'#3B82F6'" json:"color"`
	Order       int       `gorm:"column:sort_order;default:0" json:"order"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Posts []Post `gorm:"foreignKey:CategoryID" json:"-"`
}
