package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"blockwatch/internal/domain"
)

//go:embed default_feeds.yml
var defaultCatalog []byte

var ErrUnknownFeedName = domain.ErrUnknownFeedName

// FeedConfig describes one feed to ingest.
type FeedConfig struct {
	Source   string          `json:"source"`
	Name     domain.FeedName `json:"name"`
	URL      string          `json:"url"`
	Disabled bool            `json:"disabled"`
}

// Catalog is the ordered list of feeds processed by a run.
type Catalog []FeedConfig

type catalogFile struct {
	Feeds []struct {
		Source   string `yaml:"source"`
		Name     string `yaml:"name"`
		URL      string `yaml:"url"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"feeds"`
}

// LoadCatalog reads the catalog at path, or the embedded default when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode feed catalog: %w", err)
	}
	if len(file.Feeds) == 0 {
		return nil, errors.New("feed catalog is empty")
	}

	catalog := make(Catalog, 0, len(file.Feeds))
	seen := make(map[string]struct{}, len(file.Feeds))
	for i, raw := range file.Feeds {
		name, err := domain.ParseFeedName(strings.TrimSpace(raw.Name))
		if err != nil {
			return nil, fmt.Errorf("feed %d: %w", i, err)
		}
		feed := FeedConfig{
			Source:   strings.TrimSpace(raw.Source),
			Name:     name,
			URL:      strings.TrimSpace(raw.URL),
			Disabled: raw.Disabled,
		}
		if err := feed.validate(); err != nil {
			return nil, fmt.Errorf("feed %d (%s): %w", i, name, err)
		}

		key := feed.Source + "/" + string(feed.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("feed %d: duplicate entry %s", i, key)
		}
		seen[key] = struct{}{}

		catalog = append(catalog, feed)
	}
	return catalog, nil
}

func (f FeedConfig) validate() error {
	if f.Source == "" {
		return errors.New("source is required")
	}
	u, err := url.Parse(f.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) url", f.URL)
	}
	return nil
}

// Enabled returns the feeds that are not disabled, in catalog order.
func (c Catalog) Enabled() Catalog {
	out := make(Catalog, 0, len(c))
	for _, feed := range c {
		if !feed.Disabled {
			out = append(out, feed)
		}
	}
	return out
}
