package submissions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/testutil"
)

func newStore(t *testing.T) (*Store, *testutil.MemoryBlob) {
	t.Helper()
	blobs := testutil.NewMemoryBlob()
	return NewStore(testutil.NewDB(t), blobs, testutil.Logger()), blobs
}

func createSubmission(t *testing.T, s *Store, formID, company string) *models.Submission {
	t.Helper()
	sub, err := s.CreateSubmission(context.Background(), formID, map[string]interface{}{
		"companyName": company,
		"mcNumber":    "MC123456",
	}, Metadata{CompanyName: company, IPAddress: "203.0.113.7"})
	require.NoError(t, err)
	return sub
}

func TestCreateSubmission(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	sub := createSubmission(t, s, "form-1", "Acme Freight")
	assert.NotEmpty(t, sub.ID)
	assert.False(t, sub.SubmittedAt.IsZero())
	assert.False(t, sub.SentToAutomation)

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "form-1", got.FormID)
	assert.Equal(t, "MC123456", got.Payload["mcNumber"])
	require.NotNil(t, got.CompanyName)
	assert.Equal(t, "Acme Freight", *got.CompanyName)
	assert.Nil(t, got.SubmitterEmail)
}

func TestCreateSubmissionRequiresForm(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.CreateSubmission(context.Background(), "", nil, Metadata{})
	assert.Error(t, err)
}

func TestAttachArtifact(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "form-1", "Acme")

	art, err := s.AttachArtifact(ctx, sub.ID, models.ArtifactOnboarding, "mem://x", models.ContentTypePDF, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, art.ID)

	found, err := s.FindArtifact(ctx, sub.ID, models.ArtifactOnboarding)
	require.NoError(t, err)
	assert.Equal(t, "mem://x", found.Location)
	assert.Equal(t, int64(42), found.SizeBytes)

	_, err = s.AttachArtifact(ctx, sub.ID, models.ArtifactOnboarding, "mem://y", models.ContentTypePDF, 1)
	assert.ErrorIs(t, err, ErrArtifactExists)

	_, err = s.AttachArtifact(ctx, "missing", models.ArtifactOnboarding, "mem://z", models.ContentTypePDF, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreArtifact(t *testing.T) {
	s, blobs := newStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "form-1", "Acme")

	art, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactW9, models.ContentTypePDF, []byte("%PDF-w9"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), art.SizeBytes)
	assert.True(t, blobs.Has(art.Location))

	_, err = s.StoreArtifact(ctx, sub.ID, models.ArtifactW9, models.ContentTypePDF, []byte("%PDF-other"))
	assert.ErrorIs(t, err, ErrArtifactExists)
	assert.Equal(t, 1, blobs.Len())
}

func TestStoreArtifactUnknownSubmissionLeavesNoBytes(t *testing.T) {
	s, blobs := newStore(t)
	_, err := s.StoreArtifact(context.Background(), "missing", models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, blobs.Len())
}

func TestStoreArtifactPutFailure(t *testing.T) {
	s, blobs := newStore(t)
	sub := createSubmission(t, s, "form-1", "Acme")
	blobs.FailPut = true

	_, err := s.StoreArtifact(context.Background(), sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF"))
	assert.Error(t, err)

	_, err = s.FindArtifact(context.Background(), sub.ID, models.ArtifactOnboarding)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindArtifactNotFound(t *testing.T) {
	s, _ := newStore(t)
	sub := createSubmission(t, s, "form-1", "Acme")

	_, err := s.FindArtifact(context.Background(), sub.ID, models.ArtifactW9)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindArtifact(context.Background(), "missing", models.ArtifactW9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSubmissionCascades(t *testing.T) {
	s, blobs := newStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "form-1", "Acme")

	onboarding, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF-a"))
	require.NoError(t, err)
	w9, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactW9, models.ContentTypePDF, []byte("%PDF-b"))
	require.NoError(t, err)

	res, err := s.DeleteSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedArtifactCount)

	_, err = s.Get(ctx, sub.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindArtifact(ctx, sub.ID, models.ArtifactOnboarding)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, blobs.Has(onboarding.Location))
	assert.False(t, blobs.Has(w9.Location))
}

func TestDeleteSubmissionSurvivesBlobFailure(t *testing.T) {
	s, blobs := newStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "form-1", "Acme")

	_, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF-a"))
	require.NoError(t, err)
	w9, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactW9, models.ContentTypePDF, []byte("%PDF-b"))
	require.NoError(t, err)

	blobs.FailDelete = "/w9.pdf"
	res, err := s.DeleteSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedArtifactCount)

	// The record is gone even though bytes remain
	_, err = s.Get(ctx, sub.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, blobs.Has(w9.Location))
}

func TestDeleteSubmissionUnknown(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.DeleteSubmission(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSubmissionConcurrentReaders(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "form-1", "Acme")
	_, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			art, err := s.FindArtifact(ctx, sub.ID, models.ArtifactOnboarding)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			assert.Equal(t, sub.ID, art.SubmissionID)
		}()
	}
	_, err = s.DeleteSubmission(ctx, sub.ID)
	require.NoError(t, err)
	wg.Wait()
}

func TestMarkForwardedIsSticky(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "form-1", "Acme")

	require.NoError(t, s.RecordForwardError(ctx, sub.ID, "HTTP 500: boom"))
	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, got.SentToAutomation)
	require.NotNil(t, got.AutomationError)
	assert.Equal(t, "HTTP 500: boom", *got.AutomationError)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.MarkForwarded(ctx, sub.ID, first))
	require.NoError(t, s.MarkForwarded(ctx, sub.ID, first.Add(time.Hour)))

	got, err = s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.SentToAutomation)
	assert.Nil(t, got.AutomationError)
	require.NotNil(t, got.SentToAutomationAt)
	assert.True(t, first.Equal(*got.SentToAutomationAt))

	// A later error does not reset the flag
	require.NoError(t, s.RecordForwardError(ctx, sub.ID, "late"))
	got, err = s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.SentToAutomation)

	assert.ErrorIs(t, s.MarkForwarded(ctx, "missing", first), ErrNotFound)
	assert.ErrorIs(t, s.RecordForwardError(ctx, "missing", "x"), ErrNotFound)
}

func TestListFiltersAndOrders(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	older := createSubmission(t, s, "form-1", "Acme Freight")
	require.NoError(t, s.db.Model(older).Update("submitted_at", time.Now().UTC().Add(-time.Hour)).Error)
	newer := createSubmission(t, s, "form-1", "ACME Logistics")
	other := createSubmission(t, s, "form-2", "Blue Line")

	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, older.ID, all[2].ID)

	acme, err := s.List(ctx, ListFilter{Search: "acme"})
	require.NoError(t, err)
	require.Len(t, acme, 2)
	assert.Equal(t, newer.ID, acme[0].ID)

	byForm, err := s.List(ctx, ListFilter{FormID: "form-2"})
	require.NoError(t, err)
	require.Len(t, byForm, 1)
	assert.Equal(t, other.ID, byForm[0].ID)

	limited, err := s.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	counts, err := s.CountByForm(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["form-1"])
	assert.Equal(t, int64(1), counts["form-2"])
}

func TestListCursor(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		sub := createSubmission(t, s, "form-1", "Acme")
		require.NoError(t, s.db.Model(sub).Update("submitted_at", base.Add(time.Duration(i)*time.Minute)).Error)
		ids = append(ids, sub.ID)
	}

	page, err := s.List(ctx, ListFilter{FormID: "form-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	rest, err := s.List(ctx, ListFilter{FormID: "form-1", Limit: 2, Cursor: page[1].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)

	_, err = s.List(ctx, ListFilter{Cursor: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByForm(t *testing.T) {
	s, blobs := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sub := createSubmission(t, s, "form-1", "Acme")
		_, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF"))
		require.NoError(t, err)
	}
	keep := createSubmission(t, s, "form-2", "Other")

	n, err := s.DeleteByForm(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, blobs.Len())

	_, err = s.Get(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestPurgeArtifactsBefore(t *testing.T) {
	s, blobs := newStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "form-1", "Acme")

	old, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF-old"))
	require.NoError(t, err)
	require.NoError(t, s.db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error)
	fresh, err := s.StoreArtifact(ctx, sub.ID, models.ArtifactW9, models.ContentTypePDF, []byte("%PDF-new"))
	require.NoError(t, err)

	n, err := s.PurgeArtifactsBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, blobs.Has(old.Location))
	assert.True(t, blobs.Has(fresh.Location))

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, models.ArtifactW9, got.Artifacts[0].Kind)
}
