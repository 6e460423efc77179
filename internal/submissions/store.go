// Package submissions owns the mapping from a submission to its artifacts
// and enforces cascade delete.
package submissions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/crexpressinc/formsgate/internal/database"
	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/storage"
)

var (
	// ErrNotFound means the submission (or its artifact) does not exist.
	ErrNotFound = errors.New("submission not found")
	// ErrArtifactExists means the submission already has an artifact of that kind.
	ErrArtifactExists = errors.New("artifact already exists")
)

// MaxListLimit caps List results.
const MaxListLimit = 100

// Metadata is request context and common fields stored next to the payload.
type Metadata struct {
	SubmitterName  string
	SubmitterEmail string
	SubmitterPhone string
	CompanyName    string
	IPAddress      string
	UserAgent      string
	Browser        string
}

// DeleteResult reports the outcome of DeleteSubmission.
type DeleteResult struct {
	// Artifacts whose backing bytes were removed.
	DeletedArtifactCount int `json:"deletedArtifactCount"`
}

// ListFilter narrows List.
type ListFilter struct {
	Search string // case-insensitive company name match
	FormID string
	Limit  int
	// Cursor is the id of the last submission of the previous page
	Cursor string
}

// Store is the submission lifecycle store.
type Store struct {
	db    *database.DB
	blobs storage.Blob
	log   zerolog.Logger
}

// NewStore creates a Store.
func NewStore(db *database.DB, blobs storage.Blob, log zerolog.Logger) *Store {
	return &Store{
		db:    db,
		blobs: blobs,
		log:   log.With().Str("component", "submissions").Logger(),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateSubmission persists a new submission. The payload is stored as an
// opaque JSON document.
func (s *Store) CreateSubmission(ctx context.Context, formID string, payload map[string]interface{}, meta Metadata) (*models.Submission, error) {
	if formID == "" {
		return nil, errors.New("form id is required")
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	sub := &models.Submission{
		FormID:         formID,
		SubmittedAt:    time.Now().UTC(),
		Payload:        datatypes.JSONMap(payload),
		SubmitterName:  optional(meta.SubmitterName),
		SubmitterEmail: optional(meta.SubmitterEmail),
		SubmitterPhone: optional(meta.SubmitterPhone),
		CompanyName:    optional(meta.CompanyName),
		IPAddress:      optional(meta.IPAddress),
		UserAgent:      optional(meta.UserAgent),
		Browser:        optional(meta.Browser),
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.log.Info().Str("submission_id", sub.ID).Str("form_id", formID).Msg("📄 Submission stored")
	return sub, nil
}

// AttachArtifact records an artifact already written to storage.
func (s *Store) AttachArtifact(ctx context.Context, submissionID string, kind models.ArtifactKind, location, contentType string, size int64) (*models.Artifact, error) {
	art := &models.Artifact{
		SubmissionID: submissionID,
		Kind:         kind,
		Location:     location,
		ContentType:  contentType,
		SizeBytes:    size,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Submission{}).Where("id = ?", submissionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		if err := tx.Model(&models.Artifact{}).
			Where("submission_id = ? AND kind = ?", submissionID, kind).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrArtifactExists
		}
		return tx.Create(art).Error
	})
	if err != nil {
		return nil, err
	}
	return art, nil
}

// StoreArtifact writes body to the blob backend and attaches it. Written
// bytes are removed again when the attach fails.
func (s *Store) StoreArtifact(ctx context.Context, submissionID string, kind models.ArtifactKind, contentType string, body []byte) (*models.Artifact, error) {
	if _, err := s.FindArtifact(ctx, submissionID, kind); err == nil {
		return nil, ErrArtifactExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key := storage.SubmissionKey(submissionID, string(kind))
	location, err := s.blobs.Put(ctx, key, bytes.NewReader(body), int64(len(body)), contentType)
	if err != nil {
		return nil, fmt.Errorf("write %s artifact: %w", kind, err)
	}

	art, err := s.AttachArtifact(ctx, submissionID, kind, location, contentType, int64(len(body)))
	if err != nil {
		if delErr := s.blobs.Delete(ctx, location); delErr != nil {
			s.log.Warn().Err(delErr).Str("location", location).Msg("⚠️ Failed to remove orphaned artifact bytes")
		}
		return nil, err
	}

	s.log.Debug().Str("submission_id", submissionID).Str("kind", string(kind)).Int("bytes", len(body)).Msg("artifact stored")
	return art, nil
}

// FindArtifact looks up the artifact of a submission.
func (s *Store) FindArtifact(ctx context.Context, submissionID string, kind models.ArtifactKind) (*models.Artifact, error) {
	var art models.Artifact
	err := s.db.WithContext(ctx).
		Where("submission_id = ? AND kind = ?", submissionID, kind).
		First(&art).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &art, nil
}

// Get returns a submission with its artifacts.
func (s *Store) Get(ctx context.Context, id string) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).
		Preload("Artifacts", func(db *gorm.DB) *gorm.DB { return db.Order("kind") }).
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// List returns submissions newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Submission, error) {
	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	q := s.db.WithContext(ctx).Model(&models.Submission{}).Preload("Artifacts")
	if f.FormID != "" {
		q = q.Where("form_id = ?", f.FormID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q = q.Where("LOWER(company_name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if f.Cursor != "" {
		var last models.Submission
		if err := s.db.WithContext(ctx).Select("id", "submitted_at").Where("id = ?", f.Cursor).First(&last).Error; err != nil {
			return nil, notFound(err)
		}
		q = q.Where("submitted_at < ? OR (submitted_at = ? AND id < ?)", last.SubmittedAt, last.SubmittedAt, last.ID)
	}

	var subs []models.Submission
	if err := q.Order("submitted_at DESC").Order("id DESC").Limit(limit).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// CountByForm returns the number of submissions per form id.
func (s *Store) CountByForm(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		FormID string
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Select("form_id, COUNT(*) AS total").
		Group("form_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.FormID] = r.Total
	}
	return counts, nil
}

// DeleteSubmission removes the submission and its artifact rows in one
// transaction, then removes artifact bytes. Byte removal failures are logged
// and do not fail the call.
func (s *Store) DeleteSubmission(ctx context.Context, id string) (DeleteResult, error) {
	var artifacts []models.Artifact

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Submission
		if err := tx.Select("id").Where("id = ?", id).First(&sub).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("submission_id = ?", id).Find(&artifacts).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", id).Delete(&models.Artifact{}).Error; err != nil {
			return fmt.Errorf("delete artifacts: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}

	res := DeleteResult{DeletedArtifactCount: s.removeBytes(ctx, artifacts)}
	s.log.Info().
		Str("submission_id", id).
		Int("artifacts", len(artifacts)).
		Int("bytes_removed", res.DeletedArtifactCount).
		Msg("🗑️ Submission deleted")
	return res, nil
}

// removeBytes deletes artifact bytes best-effort and returns how many
// succeeded.
func (s *Store) removeBytes(ctx context.Context, artifacts []models.Artifact) int {
	removed := 0
	for _, a := range artifacts {
		if err := s.blobs.Delete(ctx, a.Location); err != nil {
			s.log.Error().Err(err).
				Str("submission_id", a.SubmissionID).
				Str("kind", string(a.Kind)).
				Msg("❌ Failed to delete artifact bytes")
			continue
		}
		removed++
	}
	return removed
}

// DeleteByForm deletes every submission of a form and returns how many
// submissions were removed.
func (s *Store) DeleteByForm(ctx context.Context, formID string) (int, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("form_id = ?", formID).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if _, err := s.DeleteSubmission(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return deleted, fmt.Errorf("delete submission %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

// MarkForwarded flags the submission as sent to automation. Once set the
// flag and timestamp never change.
func (s *Store) MarkForwarded(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND sent_to_automation = ?", id, false).
		Updates(map[string]interface{}{
			"sent_to_automation":    true,
			"sent_to_automation_at": at.UTC(),
			"automation_error":      nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.exists(ctx, id)
	}
	return nil
}

// RecordForwardError stores the last forwarding error.
func (s *Store) RecordForwardError(ctx context.Context, id, message string) error {
	res := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("automation_error", message)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Submission{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeArtifactsBefore removes artifacts created before cutoff. Their
// submissions are kept.
func (s *Store) PurgeArtifactsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var artifacts []models.Artifact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", cutoff).Find(&artifacts).Error; err != nil {
			return err
		}
		if len(artifacts) == 0 {
			return nil
		}
		ids := make([]string, len(artifacts))
		for i, a := range artifacts {
			ids[i] = a.ID
		}
		return tx.Where("id IN ?", ids).Delete(&models.Artifact{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("purge artifacts: %w", err)
	}

	if len(artifacts) > 0 {
		removed := s.removeBytes(ctx, artifacts)
		s.log.Info().Int("artifacts", len(artifacts)).Int("bytes_removed", removed).Msg("🧹 Expired artifacts purged")
	}
	return len(artifacts), nil
}
