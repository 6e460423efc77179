// Package retrieval is the only path by which artifact bytes leave the
// service.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/signedlink"
	"github.com/crexpressinc/formsgate/internal/storage"
	"github.com/crexpressinc/formsgate/internal/submissions"
)

// ErrNotFound means the artifact or its submission no longer exists.
var ErrNotFound = errors.New("artifact not found")

// ArtifactFinder looks up artifact records.
type ArtifactFinder interface {
	FindArtifact(ctx context.Context, submissionID string, kind models.ArtifactKind) (*models.Artifact, error)
}

// Download is an approved artifact stream. The caller closes Body.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	Filename    string
}

// Gate checks signed links and streams the artifact they point to.
type Gate struct {
	verifier *signedlink.Verifier
	store    ArtifactFinder
	blobs    storage.Blob
	log      zerolog.Logger
}

// NewGate creates a Gate.
func NewGate(verifier *signedlink.Verifier, store ArtifactFinder, blobs storage.Blob, log zerolog.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		store:    store,
		blobs:    blobs,
		log:      log.With().Str("component", "retrieval").Logger(),
	}
}

// Filename is the attachment name of an artifact download.
func Filename(submissionID string, kind models.ArtifactKind) string {
	return fmt.Sprintf("%s_%s.pdf", kind, submissionID)
}

// Retrieve returns the artifact bytes for an approved link. Denials are
// *signedlink.DenialError and never touch the store.
func (g *Gate) Retrieve(ctx context.Context, submissionID, kind, expiresStr, signatureHex string) (*Download, error) {
	artKind := models.ArtifactKind(kind)
	if !artKind.Valid() {
		return nil, &signedlink.DenialError{Reason: signedlink.ReasonMalformed}
	}

	if err := g.verifier.Check(submissionID, kind, expiresStr, signatureHex); err != nil {
		return nil, err
	}

	art, err := g.store.FindArtifact(ctx, submissionID, artKind)
	if err != nil {
		if errors.Is(err, submissions.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find artifact: %w", err)
	}

	body, err := g.blobs.Open(ctx, art.Location)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.log.Warn().Str("submission_id", submissionID).Str("kind", kind).Msg("⚠️ Artifact record without bytes")
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}

	return &Download{
		Body:        body,
		ContentType: art.ContentType,
		Size:        art.SizeBytes,
		Filename:    Filename(submissionID, artKind),
	}, nil
}
