package registry

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
	"github.com/amaumene/bookarr/internal/providers/direct"
	"github.com/amaumene/bookarr/internal/providers/irc"
	"github.com/amaumene/bookarr/internal/providers/newznab"
	"github.com/amaumene/bookarr/internal/providers/rss"
)

// Availability gates which providers may be queried this round. The
// blocklist manager implements it.
type Availability interface {
	IsActive(name string) bool
}

// Entry pairs a constructed provider with its static configuration
type Entry struct {
	Provider providers.Provider
	Config   config.ProviderConfig
}

// Registry holds the configured providers grouped by capability and
// answers "who can I query for category X right now"
type Registry struct {
	entries []Entry
	avail   Availability
	logger  *logrus.Logger
}

// New builds the registry from configuration, constructing one client
// per configured provider.
func New(cfgs []config.ProviderConfig, rssPollTTL time.Duration, avail Availability, logger *logrus.Logger) (*Registry, error) {
	r := &Registry{avail: avail, logger: logger}

	seen := make(map[string]struct{}, len(cfgs))
	for _, cfg := range cfgs {
		if _, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}

		p, err := NewProvider(cfg, rssPollTTL, logger)
		if err != nil {
			return nil, err
		}
		r.entries = append(r.entries, Entry{Provider: p, Config: cfg})
	}

	return r, nil
}

// FromEntries builds a registry around already-constructed providers
func FromEntries(entries []Entry, avail Availability, logger *logrus.Logger) *Registry {
	return &Registry{entries: entries, avail: avail, logger: logger}
}

// NewProvider constructs a single provider client from its config. Also
// used by the connectivity-test surface to build transient providers.
func NewProvider(cfg config.ProviderConfig, rssPollTTL time.Duration, logger *logrus.Logger) (providers.Provider, error) {
	switch cfg.Type {
	case config.ProviderNewznab, config.ProviderTorznab:
		return newznab.New(cfg, logger)
	case config.ProviderRSS:
		return rss.New(cfg, rssPollTTL, logger)
	case config.ProviderDirect:
		return direct.New(cfg, logger)
	case config.ProviderIRC:
		return irc.New(cfg, logger)
	default:
		return nil, fmt.Errorf("provider %s has unknown type %q", cfg.Name, cfg.Type)
	}
}

// ActiveFor returns the providers eligible for a category this round:
// enabled, supporting the category, and not currently blocked.
func (r *Registry) ActiveFor(cat models.Category) []Entry {
	var active []Entry
	for _, e := range r.entries {
		if !e.Config.Enabled || !e.Config.SupportsCategory(cat) {
			continue
		}
		if !r.avail.IsActive(e.Config.Name) {
			r.logger.WithField("provider", e.Config.Name).Debug("Provider blocked, skipping")
			continue
		}
		active = append(active, e)
	}
	return active
}

// All returns every configured provider entry
func (r *Registry) All() []Entry {
	return r.entries
}
