package domain

import (
	"fmt"
)

// BrandID identifies one of the product lines sharing this platform.
// The set is closed: validation, seeding and configuration lookup all
// derive from the registry below instead of repeating the list.
type BrandID string

const (
	BrandGnymble   BrandID = "gnymble"
	BrandPercyMD   BrandID = "percymd"
	BrandPercyText BrandID = "percytext"
)

// BrandConfig holds the per-brand presentation and contact settings.
type BrandConfig struct {
	ID            BrandID `json:"id"`
	DisplayName   string  `json:"display_name"`
	PrimaryDomain string  `json:"primary_domain"`
	PlatformHost  string  `json:"platform_host"`
	ThemeColor    string  `json:"theme_color"`
	LogoPath      string  `json:"logo_path"`
	SupportEmail  string  `json:"support_email"`
	Active        bool    `json:"active"`
}

var brandRegistry = map[BrandID]BrandConfig{
	BrandGnymble: {
		ID:            BrandGnymble,
		DisplayName:   "Gnymble",
		PrimaryDomain: "gnymble.com",
		PlatformHost:  "app.gnymble.com",
		ThemeColor:    "#B45309",
		LogoPath:      "/logos/gnymble.svg",
		SupportEmail:  "support@gnymble.com",
		Active:        true,
	},
	BrandPercyMD: {
		ID:            BrandPercyMD,
		DisplayName:   "PercyMD",
		PrimaryDomain: "percymd.com",
		PlatformHost:  "app.percymd.com",
		ThemeColor:    "#0369A1",
		LogoPath:      "/logos/percymd.svg",
		SupportEmail:  "support@percymd.com",
		Active:        true,
	},
	BrandPercyText: {
		ID:            BrandPercyText,
		DisplayName:   "PercyText",
		PrimaryDomain: "percytext.com",
		PlatformHost:  "app.percytext.com",
		ThemeColor:    "#15803D",
		LogoPath:      "/logos/percytext.svg",
		SupportEmail:  "support@percytext.com",
		Active:        true,
	},
}

// ErrUnknownBrand is returned when an identifier is outside the closed brand set.
type ErrUnknownBrand struct {
	ID BrandID
}

func (e *ErrUnknownBrand) Error() string {
	return fmt.Sprintf("unknown brand %q", string(e.ID))
}

// ParseBrandID validates a raw identifier against the registry.
func ParseBrandID(raw string) (BrandID, error) {
	id := BrandID(raw)
	if _, ok := brandRegistry[id]; !ok {
		return "", &ErrUnknownBrand{ID: id}
	}
	return id, nil
}

// BrandConfigFor returns the configuration for a registered brand.
func BrandConfigFor(id BrandID) (BrandConfig, error) {
	cfg, ok := brandRegistry[id]
	if !ok {
		return BrandConfig{}, &ErrUnknownBrand{ID: id}
	}
	return cfg, nil
}

// Brands returns every registered brand configuration in a stable order.
func Brands() []BrandConfig {
	ids := []BrandID{BrandGnymble, BrandPercyMD, BrandPercyText}
	configs := make([]BrandConfig, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, brandRegistry[id])
	}
	return configs
}
