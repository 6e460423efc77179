package signedlink

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueDefaultTTL(t *testing.T) {
	clock := newClock()
	issuer := NewIssuer(NewCodec(testSecret), WithClock(clock.Now))

	link, err := issuer.IssueLink("sub_123", "onboarding", 0)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(24*time.Hour).UnixMilli(), link.ExpiresAt)
	assert.True(t, clock.Now().Add(24*time.Hour).Equal(link.Expiry()))
}

func TestIssueDifferentInstantsDiffer(t *testing.T) {
	clock := newClock()
	issuer := NewIssuer(NewCodec(testSecret), WithClock(clock.Now))

	first, err := issuer.IssueLink("sub_123", "onboarding", time.Hour)
	require.NoError(t, err)
	clock.Advance(time.Millisecond)
	second, err := issuer.IssueLink("sub_123", "onboarding", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first.ExpiresAt, second.ExpiresAt)
	assert.NotEqual(t, first.Signature, second.Signature)
}

func TestIssueDifferentTTLsDiffer(t *testing.T) {
	clock := newClock()
	issuer := NewIssuer(NewCodec(testSecret), WithClock(clock.Now))

	short, err := issuer.IssueLink("sub_123", "onboarding", time.Hour)
	require.NoError(t, err)
	long, err := issuer.IssueLink("sub_123", "onboarding", 2*time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, short.Signature, long.Signature)
}

func TestIssueURLShape(t *testing.T) {
	clock := newClock()
	issuer := NewIssuer(NewCodec(testSecret), WithClock(clock.Now))

	link, err := issuer.IssueLink("sub 1/2", "w9", time.Hour)
	require.NoError(t, err)

	want := "/download/sub%201%2F2/w9?expires=" + strconv.FormatInt(link.ExpiresAt, 10) + "&signature=" + link.Signature
	assert.Equal(t, want, link.URL())
	assert.Equal(t, "https://crexpressinc.com"+want, link.AbsoluteURL("https://crexpressinc.com/"))
}

func TestIssueCustomBasePath(t *testing.T) {
	issuer := NewIssuer(NewCodec(testSecret), WithBasePath("files/"))
	raw, err := issuer.Issue("a", "w9", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, raw, "/files/a/w9?")
}

func TestIssueWithoutSecret(t *testing.T) {
	issuer := NewIssuer(NewCodec(""))
	_, err := issuer.Issue("sub_123", "onboarding", time.Hour)
	assert.ErrorIs(t, err, ErrConfiguration)
}
