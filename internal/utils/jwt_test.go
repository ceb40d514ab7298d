package utils

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", "ops@example.com", RoleOperator, time.Hour)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

    sub, role, err := ParseAccessToken("s3cret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, "ops@example.com", sub)
    assert.Equal(t, RoleOperator, role)

    _, _, err = ParseAccessToken("other", tok.Token)
    assert.Error(t, err)
}

func TestAccessTokenExpired(t *testing.T) {
    tok, err := NewAccessToken("s3cret", "ops", RoleAdmin, -time.Minute)
    require.NoError(t, err)
    _, _, err = ParseAccessToken("s3cret", tok.Token)
    assert.Error(t, err)
}

func TestNewAccessTokenValidation(t *testing.T) {
    _, err := NewAccessToken("", "ops", RoleOperator, time.Hour)
    assert.Error(t, err)
    _, err = NewAccessToken("s", "", RoleOperator, time.Hour)
    assert.Error(t, err)
}
