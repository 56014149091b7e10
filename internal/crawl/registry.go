package crawl

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/seeds.yaml
var seedsYAML embed.FS

// DomainConfig declares one allowed domain: its seed URLs, quota, politeness
// delay, and the expected record counts per category used by the coverage
// monitor.
type DomainConfig struct {
	Domain         string         `yaml:"domain"`
	Category       string         `yaml:"category"`
	MaxURLs        int            `yaml:"max_urls,omitempty"`
	RequestDelayMS int            `yaml:"request_delay_ms,omitempty"`
	Seeds          []string       `yaml:"seeds"`
	Expected       map[string]int `yaml:"expected,omitempty"`
}

type registryFile struct {
	Domains []DomainConfig `yaml:"domains"`
}

// Registry is the load-time seed configuration. Immutable after LoadRegistry.
type Registry struct {
	domains map[string]DomainConfig
	order   []string
}

// LoadRegistry reads the embedded seeds.yaml, or the file at path when one
// is given. Environment variables in the file are expanded before parsing.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading seed file: %v", ErrConfig, err)
		}
	} else {
		data, err = seedsYAML.ReadFile("config/seeds.yaml")
		if err != nil {
			return nil, fmt.Errorf("%w: embedded seeds: %v", ErrConfig, err)
		}
	}

	expanded := os.ExpandEnv(string(data))

	var file registryFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("%w: parsing seeds: %v", ErrConfig, err)
	}

	if len(file.Domains) == 0 {
		return nil, fmt.Errorf("%w: allowlist is empty", ErrConfig)
	}

	reg := &Registry{domains: make(map[string]DomainConfig, len(file.Domains))}
	for _, d := range file.Domains {
		host := strings.ToLower(strings.TrimSpace(d.Domain))
		if host == "" {
			return nil, fmt.Errorf("%w: domain entry missing host", ErrConfig)
		}
		if len(d.Seeds) == 0 {
			return nil, fmt.Errorf("%w: domain %s has no seed URLs", ErrConfig, host)
		}
		d.Domain = host
		reg.domains[host] = d
		reg.order = append(reg.order, host)
	}

	return reg, nil
}

// Seeds returns all seed URLs as depth-0, priority-0 frontier items, in
// declaration order.
func (r *Registry) Seeds() []FrontierItem {
	now := time.Now()
	var items []FrontierItem
	for _, host := range r.order {
		d := r.domains[host]
		for _, seed := range d.Seeds {
			items = append(items, FrontierItem{
				URL:        seed,
				Depth:      0,
				Category:   d.Category,
				Priority:   0,
				EnqueuedAt: now,
			})
		}
	}
	return items
}

// Allowed reports whether a host is on the allowlist.
func (r *Registry) Allowed(host string) bool {
	_, ok := r.domains[strings.ToLower(host)]
	return ok
}

// Quota returns the per-run dequeue cap for a host; 0 means unlimited.
func (r *Registry) Quota(host string) int {
	return r.domains[strings.ToLower(host)].MaxURLs
}

// Delay returns the politeness delay for a host, falling back to def.
func (r *Registry) Delay(host string, def time.Duration) time.Duration {
	d, ok := r.domains[strings.ToLower(host)]
	if !ok || d.RequestDelayMS <= 0 {
		return def
	}
	return time.Duration(d.RequestDelayMS) * time.Millisecond
}

// Expected returns the expected record count for a domain/category pair.
func (r *Registry) Expected(host, category string) int {
	return r.domains[strings.ToLower(host)].Expected[category]
}

// Domains returns the configured domains in declaration order.
func (r *Registry) Domains() []DomainConfig {
	out := make([]DomainConfig, 0, len(r.order))
	for _, host := range r.order {
		out = append(out, r.domains[host])
	}
	return out
}

// Restrict drops every domain whose host does not match any of the globs.
// Used by the CLI --domain flag.
func (r *Registry) Restrict(match func(host string) bool) error {
	var kept []string
	for _, host := range r.order {
		if match(host) {
			kept = append(kept, host)
		} else {
			delete(r.domains, host)
		}
	}
	r.order = kept
	if len(r.order) == 0 {
		return fmt.Errorf("%w: no domains match the --domain filter", ErrConfig)
	}
	return nil
}
