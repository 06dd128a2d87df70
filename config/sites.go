package config

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultLibrary = "Shared Documents"

// Site is one backup unit: a SharePoint site and the document library
// folder to mirror.
type Site struct {
	SiteURL      string `yaml:"site_url" json:"site_url"`
	BasePath     string `yaml:"base_path" json:"base_path"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"-"`
	TenantID     string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
}

type sitesFile struct {
	Sites []Site `yaml:"sites"`
}

// Name is the last path segment of the site URL.
func (s Site) Name() string {
	trimmed := strings.TrimRight(s.SiteURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func (s Site) Validate() error {
	if s.SiteURL == "" {
		return fmt.Errorf("site_url is required")
	}
	u, err := url.Parse(s.SiteURL)
	if err != nil {
		return fmt.Errorf("invalid site_url %q: %w", s.SiteURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site_url %q must be absolute", s.SiteURL)
	}
	if s.Name() == "" {
		return fmt.Errorf("site_url %q has no site name", s.SiteURL)
	}
	if s.ClientID == "" {
		return fmt.Errorf("client_id is required for %s", s.SiteURL)
	}
	if s.ClientSecret == "" {
		return fmt.Errorf("client_secret is required for %s", s.SiteURL)
	}
	return nil
}

// LoadSites reads the sites file. Credentials may reference environment
// variables (${NAME}); a missing base_path defaults to the site's
// "Shared Documents" library.
func LoadSites(filename string) ([]Site, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return ParseSites(data)
}

func ParseSites(data []byte) ([]Site, error) {
	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}
	if len(f.Sites) == 0 {
		return nil, fmt.Errorf("sites file lists no sites")
	}

	seen := make(map[string]bool)
	for i := range f.Sites {
		s := &f.Sites[i]
		s.ClientID = os.ExpandEnv(s.ClientID)
		s.ClientSecret = os.ExpandEnv(s.ClientSecret)
		s.TenantID = os.ExpandEnv(s.TenantID)
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("site %d: %w", i+1, err)
		}
		if s.BasePath == "" {
			u, _ := url.Parse(s.SiteURL)
			s.BasePath = path.Join("/", u.Path, defaultLibrary)
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("site %d: duplicate site name %q", i+1, s.Name())
		}
		seen[s.Name()] = true
	}
	return f.Sites, nil
}

// FilterSites keeps the sites whose Name is in names, preserving file order.
// An empty names list keeps everything.
func FilterSites(sites []Site, names []string) ([]Site, error) {
	if len(names) == 0 {
		return sites, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Site
	for _, s := range sites {
		if want[s.Name()] {
			out = append(out, s)
			delete(want, s.Name())
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown site %q", n)
	}
	return out, nil
}
