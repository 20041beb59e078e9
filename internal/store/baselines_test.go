package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

func TestBaseline_PutGet(t *testing.T) {
	s := createTestStore(t)
	ctx := testCtx(t)

	got, err := s.GetBaseline(ctx, testUser, "std-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	b := ir.Baseline{StandardID: "std-1", StartMs: 1000, Fingerprint: "fp-1", CreatedAtMs: 1500}
	require.NoError(t, s.PutBaseline(ctx, testUser, b))

	got, err = s.GetBaseline(ctx, testUser, "std-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b, *got)

	// Replaced, not duplicated.
	b.StartMs = 2000
	b.Fingerprint = "fp-2"
	require.NoError(t, s.PutBaseline(ctx, testUser, b))
	got, err = s.GetBaseline(ctx, testUser, "std-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.StartMs)
	assert.Equal(t, "fp-2", got.Fingerprint)

	other, err := s.GetBaseline(ctx, "user-2", "std-1")
	require.NoError(t, err)
	assert.Nil(t, other)
}
