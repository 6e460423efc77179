// Package forms manages admin-defined forms, their share links and the
// submission pipeline behind them.
package forms

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/crexpressinc/formsgate/internal/database"
	"github.com/crexpressinc/formsgate/internal/models"
)

var (
	// ErrFormNotFound is returned for unknown form ids and slugs.
	ErrFormNotFound = errors.New("form not found")
	// ErrNameRequired rejects a form without a name.
	ErrNameRequired = errors.New("form name is required")
	// ErrLinkUnavailable covers unknown, inactive, expired and used-up links.
	ErrLinkUnavailable = errors.New("form link is no longer available")
)

// SubmissionCleaner removes the submissions of a form.
type SubmissionCleaner interface {
	DeleteByForm(ctx context.Context, formID string) (int, error)
	CountByForm(ctx context.Context) (map[string]int64, error)
}

// CreateInput describes a new form.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FormType    string `json:"formType"`
}

// LinkInput describes a new share link.
type LinkInput struct {
	FormID    string     `json:"formId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	MaxUses   int        `json:"maxUses,omitempty"`
}

// Registry stores form definitions and share links.
type Registry struct {
	db          *database.DB
	submissions SubmissionCleaner
	now         func() time.Time
	log         zerolog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(db *database.DB, submissions SubmissionCleaner, log zerolog.Logger) *Registry {
	return &Registry{
		db:          db,
		submissions: submissions,
		now:         time.Now,
		log:         log.With().Str("component", "forms").Logger(),
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a form name into a URL slug with a random suffix.
func Slugify(name string) (string, error) {
	base := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	if base == "" {
		return hex.EncodeToString(suffix), nil
	}
	return base + "-" + hex.EncodeToString(suffix), nil
}

// Create stores a new active form. FormType defaults to carrier onboarding.
func (r *Registry) Create(ctx context.Context, in CreateInput) (*models.Form, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	slug, err := Slugify(name)
	if err != nil {
		return nil, fmt.Errorf("generate slug: %w", err)
	}
	formType := strings.ToUpper(strings.TrimSpace(in.FormType))
	if formType == "" {
		formType = models.FormTypeCarrierOnboarding
	}

	form := &models.Form{
		Name:        name,
		Slug:        slug,
		FormType:    formType,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if err := r.db.WithContext(ctx).Create(form).Error; err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	r.log.Info().Str("form_id", form.ID).Str("slug", slug).Msg("✅ Form created")
	return form, nil
}

// List returns all forms, newest first, with submission counts.
func (r *Registry) List(ctx context.Context) ([]models.Form, error) {
	var forms []models.Form
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&forms).Error; err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	counts, err := r.submissions.CountByForm(ctx)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	for i := range forms {
		forms[i].SubmissionCount = counts[forms[i].ID]
	}
	return forms, nil
}

// Get returns one form by id.
func (r *Registry) Get(ctx context.Context, id string) (*models.Form, error) {
	var form models.Form
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return &form, nil
}

// GetBySlug returns one form by its public slug.
func (r *Registry) GetBySlug(ctx context.Context, slug string) (*models.Form, error) {
	var form models.Form
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return &form, nil
}

// SetActive opens or closes a form for submissions.
func (r *Registry) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Form{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFormNotFound
	}
	return nil
}

// Delete removes the form after deleting its submissions (and their
// artifacts). It returns the number of submissions removed.
func (r *Registry) Delete(ctx context.Context, id string) (int, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return 0, err
	}

	deleted, err := r.submissions.DeleteByForm(ctx, id)
	if err != nil {
		return deleted, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("form_id = ?", id).Delete(&models.FormLink{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Form{}).Error
	})
	if err != nil {
		return deleted, fmt.Errorf("delete form: %w", err)
	}

	r.log.Info().Str("form_id", id).Int("submissions", deleted).Msg("🗑️ Form deleted")
	return deleted, nil
}

// CreateLink issues a share token. Links are single use and never expire
// unless the input says otherwise.
func (r *Registry) CreateLink(ctx context.Context, userID string, in LinkInput) (*models.FormLink, error) {
	link := &models.FormLink{
		CreatedByUserID: userID,
		ExpiresAt:       in.ExpiresAt,
		MaxUses:         in.MaxUses,
		IsActive:        true,
	}
	if link.MaxUses <= 0 {
		link.MaxUses = 1
	}
	if in.FormID != "" {
		if _, err := r.Get(ctx, in.FormID); err != nil {
			return nil, err
		}
		formID := in.FormID
		link.FormID = &formID
	}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, fmt.Errorf("create form link: %w", err)
	}
	r.log.Info().Str("token", link.Token).Msg("✅ Form link created")
	return link, nil
}

// ConsumeLink uses up one use of a share link for formID. Links bound to
// another form are not touched. The increment is a single conditional update
// so concurrent submissions cannot exceed MaxUses.
func (r *Registry) ConsumeLink(ctx context.Context, token, formID string) (*models.FormLink, error) {
	if token == "" {
		return nil, ErrLinkUnavailable
	}
	now := r.now().UTC()

	q := r.db.WithContext(ctx).Model(&models.FormLink{}).
		Where("token = ? AND is_active = ? AND used_count < max_uses", token, true).
		Where("expires_at IS NULL OR expires_at > ?", now)
	if formID != "" {
		q = q.Where("form_id IS NULL OR form_id = ?", formID)
	}
	res := q.Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("consume form link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrLinkUnavailable
	}

	var link models.FormLink
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// ReleaseLink gives back one use taken by ConsumeLink when the submission
// it was taken for is rolled back.
func (r *Registry) ReleaseLink(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Model(&models.FormLink{}).
		Where("token = ? AND used_count > 0", token).
		Update("used_count", gorm.Expr("used_count - 1")).Error
	if err != nil {
		return fmt.Errorf("release form link: %w", err)
	}
	return nil
}

// defaultForms are created on first start
var defaultForms = []models.Form{
	{Name: "Carrier Onboarding", Slug: "carrier-onboarding", FormType: models.FormTypeCarrierOnboarding,
		Description: "New carrier setup: company, contacts, billing and operations"},
	{Name: "Axiom Carrier Onboarding", Slug: "axiom-carrier-onboarding", FormType: models.FormTypeAxiomCarrierOnboarding,
		Description: "Carrier onboarding for the Axiom division"},
	{Name: "Load Creation Request", Slug: "load-creation-request", FormType: models.FormTypeLoadCreationRequest,
		Description: "Request a new load to be created"},
}

// EnsureDefaults creates the built-in forms that do not exist yet and
// returns how many were created.
func (r *Registry) EnsureDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, def := range defaultForms {
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.Form{}).Where("slug = ?", def.Slug).Count(&n).Error; err != nil {
			return created, fmt.Errorf("ensure form %s: %w", def.Slug, err)
		}
		if n > 0 {
			continue
		}
		form := def
		form.IsActive = true
		if err := r.db.WithContext(ctx).Create(&form).Error; err != nil {
			return created, fmt.Errorf("ensure form %s: %w", def.Slug, err)
		}
		created++
	}
	if created > 0 {
		r.log.Info().Int("count", created).Msg("✅ Default forms created")
	}
	return created, nil
}
