package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Selectors groups every site-markup dependent value. A markup change on the
// site should only require editing the YAML file pointed to by SELECTORS_FILE.
type Selectors struct {
	SiteOrigin       string `yaml:"site_origin"`
	PageParam        string `yaml:"page_param"`
	DetailPathMarker string `yaml:"detail_path_marker"`
	CookieButton     string `yaml:"cookie_button"`

	Price      string `yaml:"price"`
	AreaTag    string `yaml:"area_tag"`
	AreaMarker string `yaml:"area_marker"`
	Address    string `yaml:"address"`

	SearchReady string `yaml:"search_ready"`
	DetailReady string `yaml:"detail_ready"`
}

// DefaultSelectors returns the selectors matching willhaben.at markup.
func DefaultSelectors() Selectors {
	return Selectors{
		SiteOrigin:       "https://www.willhaben.at",
		PageParam:        "page",
		DetailPathMarker: "/iad/immobilien/d/mietwohnungen/wien/",
		CookieButton:     "#didomi-notice-agree-button",

		Price:      `span[data-testid="contact-box-price-box-price-value-0"]`,
		AreaTag:    "div",
		AreaMarker: "m²",
		Address:    `div[data-testid="object-location-address"]`,

		SearchReady: "a",
		DetailReady: "div",
	}
}

// LoadSelectors reads a YAML selector file on top of DefaultSelectors. Keys
// missing from the file keep their default. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("config: read selectors %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &sel); err != nil {
		return sel, fmt.Errorf("config: parse selectors %q: %w", path, err)
	}
	return sel, nil
}
