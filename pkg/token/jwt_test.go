package token

import (
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_IssueAndParse(t *testing.T) {
	m := NewSessionManager("secret", 1)
	id := NewSessionID()
	assert.Regexp(t, regexp.MustCompile(`^session_\d+_[0-9a-f]{10}$`), id)

	signed, err := m.Issue(id)
	require.NoError(t, err)
	got, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSessionManager_Rejects(t *testing.T) {
	m := NewSessionManager("secret", 1)

	other, err := NewSessionManager("other-secret", 1).Issue("s1")
	require.NoError(t, err)
	_, err = m.Parse(other)
	assert.Error(t, err, "signature from a different secret")

	_, err = m.Parse("not-a-token")
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		SessionID: "s1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.Parse(signed)
	assert.Error(t, err)

	empty, err := m.Issue("")
	require.NoError(t, err)
	_, err = m.Parse(empty)
	assert.Error(t, err)
}

func TestSessionManager_NoExpiry(t *testing.T) {
	m := NewSessionManager("secret", 0)
	signed, err := m.Issue("s1")
	require.NoError(t, err)

	claims := &SessionClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(signed, claims)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestGenerateRandomString(t *testing.T) {
	a := GenerateRandomString(6)
	b := GenerateRandomString(6)
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}
