package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Submission represents one form-fill event of a managed form
type Submission struct {
	ID          string            `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	FormID      string            `gorm:"column:form_id;type:varchar(36);not null;index" json:"formId"`
	SubmittedAt time.Time         `gorm:"column:submitted_at;not null;index" json:"submittedAt"`
	Payload     datatypes.JSONMap `gorm:"column:payload" json:"payload"` // sanitized form fields

	// Common fields extracted from the payload for querying
	SubmitterName  *string `gorm:"column:submitter_name" json:"submitterName,omitempty"`
	SubmitterEmail *string `gorm:"column:submitter_email" json:"submitterEmail,omitempty"`
	SubmitterPhone *string `gorm:"column:submitter_phone" json:"submitterPhone,omitempty"`
	CompanyName    *string `gorm:"column:company_name;index" json:"companyName,omitempty"`

	IPAddress *string `gorm:"column:ip_address" json:"ipAddress,omitempty"`
	UserAgent *string `gorm:"column:user_agent" json:"userAgent,omitempty"`
	Browser   *string `gorm:"column:browser" json:"browser,omitempty"`

	// Forwarding status; once sent it is never reset
	SentToAutomation   bool       `gorm:"column:sent_to_automation;not null;default:false" json:"sentToAutomation"`
	SentToAutomationAt *time.Time `gorm:"column:sent_to_automation_at" json:"sentToAutomationAt,omitempty"`
	AutomationError    *string    `gorm:"column:automation_error" json:"automationError,omitempty"`

	Artifacts []Artifact `gorm:"foreignKey:SubmissionID" json:"artifacts,omitempty"`
}

// TableName specifies the table name
func (Submission) TableName() string {
	return "submissions"
}

// BeforeCreate assigns the identifier and submission time
func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now().UTC()
	}
	return nil
}

// ArtifactKind enumerates generated documents of a submission
type ArtifactKind string

const (
	ArtifactOnboarding ArtifactKind = "onboarding" // primary rendered document
	ArtifactW9         ArtifactKind = "w9"         // uploaded attachment
)

// ContentTypePDF is the only artifact content type
const ContentTypePDF = "application/pdf"

// Valid reports whether k is a known artifact kind
func (k ArtifactKind) Valid() bool {
	return k == ArtifactOnboarding || k == ArtifactW9
}

// Artifact is a generated binary document owned by a submission.
// Rows are immutable after creation.
type Artifact struct {
	ID           string       `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	SubmissionID string       `gorm:"column:submission_id;type:varchar(36);not null;uniqueIndex:idx_artifact_submission_kind" json:"submissionId"`
	Kind         ArtifactKind `gorm:"column:kind;type:varchar(32);not null;uniqueIndex:idx_artifact_submission_kind" json:"kind"`
	Location     string       `gorm:"column:location;not null" json:"-"`
	ContentType  string       `gorm:"column:content_type;not null" json:"contentType"`
	SizeBytes    int64        `gorm:"column:size_bytes;not null" json:"sizeBytes"`
	CreatedAt    time.Time    `gorm:"column:created_at;not null;index" json:"createdAt"`
}

// TableName specifies the table name
func (Artifact) TableName() string {
	return "artifacts"
}

// BeforeCreate assigns the identifier
func (a *Artifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
