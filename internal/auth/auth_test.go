package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	id, ok := Static("user-1").CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)

	_, ok = Static("").CurrentUserID()
	assert.False(t, ok)
}

func TestRequire(t *testing.T) {
	id, err := Require(Static("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	_, err = Require(Static(""))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = Require(nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
