package loot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddAndList(t *testing.T) {
	_, registry, _ := newTestService(t)
	ctx := context.Background()

	reserve, err := registry.Add(ctx, officerSess, "  Ashkandi  ", "guild bank")
	require.NoError(t, err)
	assert.Equal(t, "Ashkandi", reserve.ItemName)

	_, err = registry.Add(ctx, officerSess, "Perdition's Blade", "")
	require.NoError(t, err)

	reserves, err := registry.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, reserves, 2)

	reserves, err = registry.List(ctx, "ashk")
	require.NoError(t, err)
	require.Len(t, reserves, 1)
	assert.Equal(t, "Ashkandi", reserves[0].ItemName)
}

func TestRegistryMutationsOfficerOnly(t *testing.T) {
	_, registry, _ := newTestService(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, memberSess, "Ashkandi", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	reserve, err := registry.Add(ctx, officerSess, "Ashkandi", "")
	require.NoError(t, err)

	_, err = registry.Update(ctx, memberSess, reserve.ID, nil, strPtr("note"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	err = registry.Remove(ctx, memberSess, reserve.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRegistryDuplicateCaseInsensitive(t *testing.T) {
	_, registry, _ := newTestService(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, officerSess, "Ashkandi", "")
	require.NoError(t, err)

	_, err = registry.Add(ctx, officerSess, "ASHKANDI", "")
	assert.ErrorIs(t, err, ErrDuplicateItem)
	_, err = registry.Add(ctx, officerSess, "  ashkandi ", "")
	assert.ErrorIs(t, err, ErrDuplicateItem)
}

func TestRegistryUpdate(t *testing.T) {
	_, registry, _ := newTestService(t)
	ctx := context.Background()

	a, err := registry.Add(ctx, officerSess, "Ashkandi", "")
	require.NoError(t, err)
	b, err := registry.Add(ctx, officerSess, "Maladath", "")
	require.NoError(t, err)

	updated, err := registry.Update(ctx, officerSess, b.ID, strPtr("Crul'shorukh"), strPtr("off-hand"))
	require.NoError(t, err)
	assert.Equal(t, "Crul'shorukh", updated.ItemName)
	assert.Equal(t, "off-hand", updated.Note)

	_, err = registry.Update(ctx, officerSess, b.ID, strPtr("ashkandi"), nil)
	assert.ErrorIs(t, err, ErrDuplicateItem)

	_, err = registry.Update(ctx, officerSess, a.ID, strPtr("ASHKANDI"), nil)
	require.NoError(t, err, "renaming a reserve onto itself is not a duplicate")

	_, err = registry.Update(ctx, officerSess, 9999, nil, strPtr("x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryRemoveAndContains(t *testing.T) {
	_, registry, _ := newTestService(t)
	ctx := context.Background()

	reserve, err := registry.Add(ctx, officerSess, "Ashkandi", "")
	require.NoError(t, err)

	reserved, err := registry.Contains(ctx, "  ASHKANDI ")
	require.NoError(t, err)
	assert.True(t, reserved)

	require.NoError(t, registry.Remove(ctx, officerSess, reserve.ID))
	reserved, err = registry.Contains(ctx, "Ashkandi")
	require.NoError(t, err)
	assert.False(t, reserved)

	assert.ErrorIs(t, registry.Remove(ctx, officerSess, reserve.ID), ErrNotFound)
}

func strPtr(s string) *string { return &s }
