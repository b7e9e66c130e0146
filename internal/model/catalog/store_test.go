package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedHasThreeTiers(t *testing.T) {
	store := NewMemoryStore(Seed())
	models := store.List()
	require.Len(t, models, 3)

	tiers := map[Tier]bool{}
	for _, m := range models {
		tiers[m.Tier] = true
	}
	assert.True(t, tiers[TierFast])
	assert.True(t, tiers[TierLowCost])
	assert.True(t, tiers[TierHighCapability])
	assert.Equal(t, "gemini-2.0-flash", store.Default().ID)
}

func TestFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("gemini-2.5-pro")
	require.True(t, ok)
	assert.Equal(t, TierHighCapability, got.Tier)

	_, ok = store.FindByID("gpt-4")
	assert.False(t, ok)
}

func TestNextWrapsAround(t *testing.T) {
	store := NewMemoryStore(Seed())

	assert.Equal(t, "gemini-2.5-flash-lite", store.Next("gemini-2.0-flash").ID)
	assert.Equal(t, "gemini-2.0-flash", store.Next("gemini-2.5-pro").ID)
	assert.Equal(t, "gemini-2.0-flash", store.Next("unknown").ID)
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	models := store.List()
	models[0].ID = "mutated"

	assert.Equal(t, "gemini-2.0-flash", store.Default().ID)
}
