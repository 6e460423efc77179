package retrieval

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crexpressinc/formsgate/internal/database"
	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/signedlink"
	"github.com/crexpressinc/formsgate/internal/submissions"
	"github.com/crexpressinc/formsgate/internal/testutil"
)

type fixture struct {
	gate   *Gate
	store  *submissions.Store
	blobs  *testutil.MemoryBlob
	issuer *signedlink.Issuer
	db     *database.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec := signedlink.NewCodec("gate-test-secret")
	blobs := testutil.NewMemoryBlob()
	db := testutil.NewDB(t)
	store := submissions.NewStore(db, blobs, testutil.Logger())
	return &fixture{
		db:     db,
		gate:   NewGate(signedlink.NewVerifier(codec), store, blobs, testutil.Logger()),
		store:  store,
		blobs:  blobs,
		issuer: signedlink.NewIssuer(codec),
	}
}

// spyFinder records whether the gate reached the store.
type spyFinder struct {
	calls int
}

func (s *spyFinder) FindArtifact(ctx context.Context, submissionID string, kind models.ArtifactKind) (*models.Artifact, error) {
	s.calls++
	return nil, submissions.ErrNotFound
}

func (f *fixture) submission(t *testing.T, body string) *models.Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := f.store.CreateSubmission(ctx, "form-1", map[string]interface{}{"companyName": "Acme"}, submissions.Metadata{})
	require.NoError(t, err)
	_, err = f.store.StoreArtifact(ctx, sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, []byte(body))
	require.NoError(t, err)
	return sub
}

func queryOf(t *testing.T, raw string) (expires, signature string) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get(signedlink.ParamExpires), u.Query().Get(signedlink.ParamSignature)
}

func reasonOf(t *testing.T, err error) signedlink.Reason {
	t.Helper()
	r, ok := signedlink.ReasonOf(err)
	require.True(t, ok, "expected a denial, got %v", err)
	return r
}

func TestRetrieveIssuedLink(t *testing.T) {
	f := newFixture(t)
	sub := f.submission(t, "%PDF-1.4 onboarding")

	raw, err := f.issuer.Issue(sub.ID, "onboarding", time.Hour)
	require.NoError(t, err)
	expires, sig := queryOf(t, raw)

	dl, err := f.gate.Retrieve(context.Background(), sub.ID, "onboarding", expires, sig)
	require.NoError(t, err)
	defer dl.Body.Close()

	got, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 onboarding", string(got))
	assert.Equal(t, "application/pdf", dl.ContentType)
	assert.Equal(t, int64(len(got)), dl.Size)
	assert.Equal(t, "onboarding_"+sub.ID+".pdf", dl.Filename)
}

func TestRetrieveKnownSubmissionID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.Submission{ID: "sub_123", FormID: "form-1"}).Error)
	_, err := f.store.StoreArtifact(ctx, "sub_123", models.ArtifactOnboarding, models.ContentTypePDF, []byte("%PDF-sub_123"))
	require.NoError(t, err)

	raw, err := f.issuer.Issue("sub_123", "onboarding", 3600*time.Second)
	require.NoError(t, err)
	assert.Regexp(t, `^/download/sub_123/onboarding\?expires=\d+&signature=[0-9a-f]{64}$`, raw)
	expires, sig := queryOf(t, raw)

	dl, err := f.gate.Retrieve(ctx, "sub_123", "onboarding", expires, sig)
	require.NoError(t, err)
	defer dl.Body.Close()
	got, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-sub_123", string(got))
	assert.Equal(t, models.ContentTypePDF, dl.ContentType)
}

func TestRetrieveAfterDeleteIsNotFound(t *testing.T) {
	f := newFixture(t)
	sub := f.submission(t, "%PDF")

	raw, err := f.issuer.Issue(sub.ID, "onboarding", time.Hour)
	require.NoError(t, err)
	expires, sig := queryOf(t, raw)

	_, err = f.store.DeleteSubmission(context.Background(), sub.ID)
	require.NoError(t, err)

	_, err = f.gate.Retrieve(context.Background(), sub.ID, "onboarding", expires, sig)
	assert.ErrorIs(t, err, ErrNotFound)
	_, denied := signedlink.ReasonOf(err)
	assert.False(t, denied)
}

func TestRetrieveMalformedDoesNotTouchStore(t *testing.T) {
	spy := &spyFinder{}
	gate := NewGate(signedlink.NewVerifier(signedlink.NewCodec("s")), spy, testutil.NewMemoryBlob(), testutil.Logger())

	dl, err := gate.Retrieve(context.Background(), "sub_123", "onboarding", "not-a-number", "deadbeef")
	assert.Nil(t, dl)
	assert.Equal(t, signedlink.ReasonMalformed, reasonOf(t, err))
	assert.Zero(t, spy.calls)
}

func TestRetrieveDenialsShortCircuit(t *testing.T) {
	spy := &spyFinder{}
	codec := signedlink.NewCodec("s")
	gate := NewGate(signedlink.NewVerifier(codec), spy, testutil.NewMemoryBlob(), testutil.Logger())
	issuer := signedlink.NewIssuer(codec, signedlink.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))

	raw, err := issuer.Issue("sub_123", "onboarding", time.Hour)
	require.NoError(t, err)
	expires, sig := queryOf(t, raw)

	_, err = gate.Retrieve(context.Background(), "sub_123", "onboarding", expires, sig)
	assert.Equal(t, signedlink.ReasonExpired, reasonOf(t, err))

	future := time.Now().Add(time.Hour).UnixMilli()
	bad, err := codec.Sign("sub_999", "onboarding", future)
	require.NoError(t, err)
	_, err = gate.Retrieve(context.Background(), "sub_123", "onboarding", strconv.FormatInt(future, 10), bad)
	assert.Equal(t, signedlink.ReasonBadSignature, reasonOf(t, err))

	assert.Zero(t, spy.calls)
}

func TestRetrieveUnknownKind(t *testing.T) {
	f := newFixture(t)
	sub := f.submission(t, "%PDF")

	codec := signedlink.NewCodec("gate-test-secret")
	raw, err := signedlink.NewIssuer(codec).Issue(sub.ID, "invoice", time.Hour)
	require.NoError(t, err)
	expires, sig := queryOf(t, raw)

	_, err = f.gate.Retrieve(context.Background(), sub.ID, "invoice", expires, sig)
	assert.Equal(t, signedlink.ReasonMalformed, reasonOf(t, err))
}

func TestRetrieveMissingArtifactKind(t *testing.T) {
	f := newFixture(t)
	sub := f.submission(t, "%PDF")

	raw, err := f.issuer.Issue(sub.ID, "w9", time.Hour)
	require.NoError(t, err)
	expires, sig := queryOf(t, raw)

	_, err = f.gate.Retrieve(context.Background(), sub.ID, "w9", expires, sig)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieveMissingBytesIsNotFound(t *testing.T) {
	f := newFixture(t)
	sub := f.submission(t, "%PDF")

	art, err := f.store.FindArtifact(context.Background(), sub.ID, models.ArtifactOnboarding)
	require.NoError(t, err)
	require.NoError(t, f.blobs.Delete(context.Background(), art.Location))

	raw, err := f.issuer.Issue(sub.ID, "onboarding", time.Hour)
	require.NoError(t, err)
	expires, sig := queryOf(t, raw)

	_, err = f.gate.Retrieve(context.Background(), sub.ID, "onboarding", expires, sig)
	assert.ErrorIs(t, err, ErrNotFound)
}
