// Package profile holds per-site crawl configuration: where the sitemap lives,
// which URLs carry a fixed @type, placeholders for non-HTML resources and
// synthetic documents appended to every crawl.
package profile

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kismet-tech/NLWeb/internal/document"
)

//go:embed profiles/*.yaml
var builtin embed.FS

const DefaultName = "makekismet"

var ErrInvalidProfile = errors.New("invalid profile")

type TypeOverride struct {
	URL  string `yaml:"url"`
	Type string `yaml:"type"`
}

type Profile struct {
	Site          string                 `yaml:"site"`
	SitemapURL    string                 `yaml:"sitemap"`
	BaseURL       string                 `yaml:"base_url"`
	SameHostOnly  bool                   `yaml:"same_host_only"`
	Exclusions    []string               `yaml:"exclusions"`
	TypeOverrides []TypeOverride         `yaml:"type_overrides"`
	Placeholders  []document.Placeholder `yaml:"placeholders"`
	Documents     []map[string]any       `yaml:"documents"`
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a profile from a file path, or a built-in profile by name.
func Load(nameOrPath string) (*Profile, error) {
	data, err := builtin.ReadFile("profiles/" + nameOrPath + ".yaml")
	if err != nil {
		data, err = os.ReadFile(nameOrPath)
		if err != nil {
			return nil, fmt.Errorf("load profile %q: %w", nameOrPath, err)
		}
	}
	return Parse(data)
}

// Default returns the built-in profile.
func Default() *Profile {
	p, err := Load(DefaultName)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Profile) Validate() error {
	if p.Site == "" {
		return fmt.Errorf("%w: site is required", ErrInvalidProfile)
	}
	for i, o := range p.TypeOverrides {
		if o.URL == "" || o.Type == "" {
			return fmt.Errorf("%w: type_overrides[%d] needs url and type", ErrInvalidProfile, i)
		}
	}
	for i, ph := range p.Placeholders {
		if ph.URL == "" {
			return fmt.Errorf("%w: placeholders[%d] needs url", ErrInvalidProfile, i)
		}
	}
	for i, d := range p.Documents {
		if u, _ := d["url"].(string); u == "" {
			return fmt.Errorf("%w: documents[%d] needs url", ErrInvalidProfile, i)
		}
	}
	return nil
}

// TypeFor returns the first configured @type for an exact URL match.
func (p *Profile) TypeFor(url string) (string, bool) {
	for _, o := range p.TypeOverrides {
		if o.URL == url {
			return o.Type, true
		}
	}
	return "", false
}

// PlaceholderFor returns the configured placeholder for an exact URL match.
func (p *Profile) PlaceholderFor(url string) (document.Placeholder, bool) {
	for _, ph := range p.Placeholders {
		if ph.URL == url {
			return ph, true
		}
	}
	return document.Placeholder{}, false
}
