package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrandID(t *testing.T) {
	for _, raw := range []string{"gnymble", "percymd", "percytext"} {
		id, err := ParseBrandID(raw)
		require.NoError(t, err)
		assert.Equal(t, BrandID(raw), id)
	}

	_, err := ParseBrandID("acme")
	require.Error(t, err)
	var unknown *ErrUnknownBrand
	assert.ErrorAs(t, err, &unknown)
}

func TestBrandConfigFor(t *testing.T) {
	cfg, err := BrandConfigFor(BrandGnymble)
	require.NoError(t, err)
	assert.Equal(t, "Gnymble", cfg.DisplayName)
	assert.Equal(t, "gnymble.com", cfg.PrimaryDomain)
	assert.True(t, cfg.Active)

	_, err = BrandConfigFor(BrandID("nope"))
	assert.Error(t, err)
}

func TestBrandsCoversRegistry(t *testing.T) {
	brands := Brands()
	require.Len(t, brands, 3)

	seen := make(map[BrandID]bool)
	for _, cfg := range brands {
		seen[cfg.ID] = true
		assert.NotEmpty(t, cfg.SupportEmail)
		assert.NotEmpty(t, cfg.PlatformHost)
	}
	assert.True(t, seen[BrandGnymble])
	assert.True(t, seen[BrandPercyMD])
	assert.True(t, seen[BrandPercyText])
}
