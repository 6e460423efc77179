package signedlink

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crexpressinc/formsgate/internal/metrics"
)

// DefaultTTL is the lifetime of a link when none is given.
const DefaultTTL = 24 * time.Hour

// DefaultBasePath is where the download endpoint is mounted.
const DefaultBasePath = "/download"

// Query parameter names of a signed link.
const (
	ParamExpires   = "expires"
	ParamSignature = "signature"
)

type options struct {
	now      func() time.Time
	basePath string
}

// Option configures an Issuer or Verifier.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBasePath mounts links under a different path prefix.
func WithBasePath(p string) Option {
	return func(o *options) { o.basePath = "/" + strings.Trim(p, "/") }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, basePath: DefaultBasePath}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SignedLink is the derived, never persisted, value behind a download URL.
type SignedLink struct {
	SubmissionID string `json:"submissionId"`
	Kind         string `json:"kind"`
	ExpiresAt    int64  `json:"expiresAt"` // Unix millis
	Signature    string `json:"signature"`

	basePath string
}

// Expiry returns ExpiresAt as a time.
func (l SignedLink) Expiry() time.Time {
	return time.UnixMilli(l.ExpiresAt).UTC()
}

// URL renders the relative link.
func (l SignedLink) URL() string {
	base := l.basePath
	if base == "" {
		base = DefaultBasePath
	}
	q := url.Values{}
	q.Set(ParamExpires, strconv.FormatInt(l.ExpiresAt, 10))
	q.Set(ParamSignature, l.Signature)
	return base + "/" + url.PathEscape(l.SubmissionID) + "/" + url.PathEscape(l.Kind) + "?" + q.Encode()
}

// AbsoluteURL prefixes the relative link with a public origin.
func (l SignedLink) AbsoluteURL(origin string) string {
	return strings.TrimSuffix(origin, "/") + l.URL()
}

// Issuer produces signed links. It keeps no state about issued links.
type Issuer struct {
	codec *Codec
	opts  options
}

// NewIssuer creates an Issuer.
func NewIssuer(codec *Codec, opts ...Option) *Issuer {
	return &Issuer{codec: codec, opts: buildOptions(opts)}
}

// IssueLink signs (submissionID, kind, now+ttl). A non-positive ttl means
// DefaultTTL.
func (i *Issuer) IssueLink(submissionID, kind string, ttl time.Duration) (SignedLink, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	expiresAt := i.opts.now().Add(ttl).UnixMilli()

	sig, err := i.codec.Sign(submissionID, kind, expiresAt)
	if err != nil {
		return SignedLink{}, err
	}

	metrics.RecordLinkIssued(kind)
	return SignedLink{
		SubmissionID: submissionID,
		Kind:         kind,
		ExpiresAt:    expiresAt,
		Signature:    sig,
		basePath:     i.opts.basePath,
	}, nil
}

// Issue returns the relative URL of a freshly signed link.
func (i *Issuer) Issue(submissionID, kind string, ttl time.Duration) (string, error) {
	link, err := i.IssueLink(submissionID, kind, ttl)
	if err != nil {
		return "", err
	}
	return link.URL(), nil
}
