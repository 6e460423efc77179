package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Known managed form types
const (
	FormTypeCarrierOnboarding      = "CARRIER_ONBOARDING"
	FormTypeAxiomCarrierOnboarding = "AXIOM_CARRIER_ONBOARDING"
	FormTypeWarehouseCheckIn       = "WAREHOUSE_CHECKIN"
	FormTypeDriverFeedback         = "DRIVER_FEEDBACK"
	FormTypeBathroomRequest        = "BATHROOM_REQUEST"
	FormTypeEmployeeAssetCheckIn   = "EMPLOYEE_ASSET_CHECKIN"
	FormTypeWarehouseServices      = "WAREHOUSE_SERVICES"
	FormTypeLoadCreationRequest    = "LOAD_CREATION_REQUEST"
)

// Form is an admin-managed form definition
type Form struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"unique;not null" json:"slug"`
	FormType    string    `gorm:"column:form_type;not null;index" json:"formType"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `gorm:"not null" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	SubmissionCount int64 `gorm:"-" json:"submissionCount"`
}

// TableName specifies the table name
func (Form) TableName() string {
	return "forms"
}

// BeforeCreate assigns the identifier
func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// FormLink is a shareable, usage-limited token granting access to a form
type FormLink struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Token           string     `gorm:"unique;not null" json:"token"`
	FormID          *string    `gorm:"type:varchar(36);index" json:"formId,omitempty"`
	CreatedByUserID string     `gorm:"not null" json:"createdByUserId"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	MaxUses         int        `gorm:"not null;default:1" json:"maxUses"`
	UsedCount       int        `gorm:"not null;default:0" json:"usedCount"`
	IsActive        bool       `gorm:"not null" json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// TableName specifies the table name
func (FormLink) TableName() string {
	return "form_links"
}

// BeforeCreate assigns identifier and token
func (l *FormLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Token == "" {
		l.Token = uuid.NewString()
	}
	return nil
}
