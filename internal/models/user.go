package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminUser is a back-office account allowed into the admin API
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type AdminUser struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string     `gorm:"unique;not null" json:"email"`
	Password  string     `gorm:"not null" json:"-"`
	Name      string     `json:"name,omitempty"`
	Role      string     `gorm:"default:'admin'" json:"role"`
	IsActive  bool       `gorm:"not null" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for AdminUser model
func (AdminUser) TableName() string {
	return "admin_users"
}

// BeforeCreate assigns the identifier
func (u *AdminUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
