package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/amaumene/bookarr/internal/models"
)

const maxProviderSlots = 32

// ProviderType identifies the wire protocol a provider speaks
type ProviderType string

const (
	ProviderNewznab ProviderType = "newznab"
	ProviderTorznab ProviderType = "torznab"
	ProviderRSS     ProviderType = "rss"
	ProviderDirect  ProviderType = "direct"
	ProviderIRC     ProviderType = "irc"
)

// ProviderConfig is the static configuration of one search provider.
// Read-only to the acquisition core.
type ProviderConfig struct {
	Name     string
	Type     ProviderType
	URL      string
	APIKey   string
	Enabled  bool
	Priority int // Lower wins ties between equally scored candidates

	Categories []models.Category

	// IRC specific
	Server  string
	Channel string
	BotNick string
	Nick    string

	// Direct (HTML scrape) specific
	RowSelector   string
	TitleSelector string
	LinkSelector  string
	SizeSelector  string
}

// SupportsCategory reports whether the provider is configured for a category
func (p ProviderConfig) SupportsCategory(cat models.Category) bool {
	for _, c := range p.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// SABnzbdConfig configures the usenet download client
type SABnzbdConfig struct {
	URL      string
	APIKey   string
	Category string
}

// QBittorrentConfig configures the torrent download client
type QBittorrentConfig struct {
	URL      string
	Username string
	Password string
	Category string
}

// BlackholeConfig configures the filesystem drop folder
type BlackholeConfig struct {
	Dir string
}

// ScoringConfig holds the match/reject tunables
type ScoringConfig struct {
	MinScore    int // Percentage threshold below which a hit is rejected
	RejectWords []string

	EBookTypes     []string
	AudiobookTypes []string
	MagazineTypes  []string

	// Size bounds in megabytes, zero means unbounded
	EBookMinMB, EBookMaxMB         int64
	AudiobookMinMB, AudiobookMaxMB int64
	MagazineMinMB, MagazineMaxMB   int64
}

// TypesForCategory returns the acceptable file types for a category
func (s ScoringConfig) TypesForCategory(cat models.Category) []string {
	switch cat {
	case models.CategoryAudiobook:
		return s.AudiobookTypes
	case models.CategoryMagazine:
		return s.MagazineTypes
	default:
		return s.EBookTypes
	}
}

// SizeBoundsForCategory returns the min/max size in bytes for a category
func (s ScoringConfig) SizeBoundsForCategory(cat models.Category) (int64, int64) {
	const mb = 1024 * 1024
	switch cat {
	case models.CategoryAudiobook:
		return s.AudiobookMinMB * mb, s.AudiobookMaxMB * mb
	case models.CategoryMagazine:
		return s.MagazineMinMB * mb, s.MagazineMaxMB * mb
	default:
		return s.EBookMinMB * mb, s.EBookMaxMB * mb
	}
}

// Config holds all application configuration
type Config struct {
	// Server
	ServerPort string

	// Paths
	DatabaseFile string

	// Providers
	Providers []ProviderConfig

	// Download clients (nil when not configured)
	SABnzbd     *SABnzbdConfig
	QBittorrent *QBittorrentConfig
	Blackhole   *BlackholeConfig

	// Scoring
	Scoring ScoringConfig

	// Blocklist backoff
	BlocklistBaseMinutes int
	BlocklistCapHours    int

	// Search round bounds
	ProviderTimeoutSeconds int
	RoundTimeoutSeconds    int

	// Acquisition lifecycle
	MaxRetries          int
	SearchCron          string
	StuckCron           string
	StuckTimeoutMinutes int
	RSSPollMinutes      int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MATCH_MIN_SCORE", 80)
	viper.SetDefault("BLOCKLIST_BASE_MINUTES", 30)
	viper.SetDefault("BLOCKLIST_CAP_HOURS", 24)
	viper.SetDefault("PROVIDER_TIMEOUT_SECONDS", 30)
	viper.SetDefault("ROUND_TIMEOUT_SECONDS", 120)
	viper.SetDefault("MAX_RETRIES", 5)
	viper.SetDefault("SEARCH_CRON", "*/30 * * * *")
	viper.SetDefault("STUCK_CRON", "*/10 * * * *")
	viper.SetDefault("STUCK_TIMEOUT_MINUTES", 120)
	viper.SetDefault("RSS_POLL_MINUTES", 20)
	viper.SetDefault("EBOOK_TYPES", "epub,mobi,azw3,pdf")
	viper.SetDefault("AUDIOBOOK_TYPES", "m4b,mp3,m4a,flac")
	viper.SetDefault("MAGAZINE_TYPES", "pdf,cbz,cbr")
	viper.SetDefault("EBOOK_MAX_MB", 250)
	viper.SetDefault("AUDIOBOOK_MAX_MB", 3000)
	viper.SetDefault("MAGAZINE_MAX_MB", 1000)

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "bookarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	providers, err := loadProviders()
	if err != nil {
		return nil, err
	}

	config := &Config{
		ServerPort:   viper.GetString("SERVER_PORT"),
		DatabaseFile: filepath.Join(configDir, "bookarr.db"),
		Providers:    providers,

		Scoring: ScoringConfig{
			MinScore:       viper.GetInt("MATCH_MIN_SCORE"),
			RejectWords:    splitList(viper.GetString("REJECT_WORDS")),
			EBookTypes:     splitList(viper.GetString("EBOOK_TYPES")),
			AudiobookTypes: splitList(viper.GetString("AUDIOBOOK_TYPES")),
			MagazineTypes:  splitList(viper.GetString("MAGAZINE_TYPES")),
			EBookMinMB:     viper.GetInt64("EBOOK_MIN_MB"),
			EBookMaxMB:     viper.GetInt64("EBOOK_MAX_MB"),
			AudiobookMinMB: viper.GetInt64("AUDIOBOOK_MIN_MB"),
			AudiobookMaxMB: viper.GetInt64("AUDIOBOOK_MAX_MB"),
			MagazineMinMB:  viper.GetInt64("MAGAZINE_MIN_MB"),
			MagazineMaxMB:  viper.GetInt64("MAGAZINE_MAX_MB"),
		},

		BlocklistBaseMinutes: viper.GetInt("BLOCKLIST_BASE_MINUTES"),
		BlocklistCapHours:    viper.GetInt("BLOCKLIST_CAP_HOURS"),

		ProviderTimeoutSeconds: viper.GetInt("PROVIDER_TIMEOUT_SECONDS"),
		RoundTimeoutSeconds:    viper.GetInt("ROUND_TIMEOUT_SECONDS"),

		MaxRetries:          viper.GetInt("MAX_RETRIES"),
		SearchCron:          viper.GetString("SEARCH_CRON"),
		StuckCron:           viper.GetString("STUCK_CRON"),
		StuckTimeoutMinutes: viper.GetInt("STUCK_TIMEOUT_MINUTES"),
		RSSPollMinutes:      viper.GetInt("RSS_POLL_MINUTES"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if url := viper.GetString("SABNZBD_URL"); url != "" {
		config.SABnzbd = &SABnzbdConfig{
			URL:      url,
			APIKey:   viper.GetString("SABNZBD_APIKEY"),
			Category: viper.GetString("SABNZBD_CATEGORY"),
		}
	}

	if url := viper.GetString("QBITTORRENT_URL"); url != "" {
		config.QBittorrent = &QBittorrentConfig{
			URL:      url,
			Username: viper.GetString("QBITTORRENT_USERNAME"),
			Password: viper.GetString("QBITTORRENT_PASSWORD"),
			Category: viper.GetString("QBITTORRENT_CATEGORY"),
		}
	}

	if dir := viper.GetString("BLACKHOLE_DIR"); dir != "" {
		config.Blackhole = &BlackholeConfig{Dir: dir}
	}

	return config, nil
}

// loadProviders reads the indexed PROVIDER_<n>_* blocks. Slots are scanned
// in order and stop at the first one without a NAME.
func loadProviders() ([]ProviderConfig, error) {
	var providers []ProviderConfig

	for i := 1; i <= maxProviderSlots; i++ {
		prefix := fmt.Sprintf("PROVIDER_%d_", i)
		name := viper.GetString(prefix + "NAME")
		if name == "" {
			break
		}

		viper.SetDefault(prefix+"ENABLED", true)
		viper.SetDefault(prefix+"PRIORITY", i)
		viper.SetDefault(prefix+"CATEGORIES", "ebook")
		viper.SetDefault(prefix+"NICK", "bookarr")

		ptype := ProviderType(strings.ToLower(viper.GetString(prefix + "TYPE")))
		switch ptype {
		case ProviderNewznab, ProviderTorznab, ProviderRSS, ProviderDirect, ProviderIRC:
		default:
			return nil, fmt.Errorf("provider %s has unknown type %q", name, ptype)
		}

		var categories []models.Category
		for _, c := range splitList(viper.GetString(prefix + "CATEGORIES")) {
			switch models.Category(c) {
			case models.CategoryEBook, models.CategoryAudiobook, models.CategoryMagazine:
				categories = append(categories, models.Category(c))
			default:
				return nil, fmt.Errorf("provider %s has unknown category %q", name, c)
			}
		}

		providers = append(providers, ProviderConfig{
			Name:     name,
			Type:     ptype,
			URL:      viper.GetString(prefix + "URL"),
			APIKey:   viper.GetString(prefix + "APIKEY"),
			Enabled:  viper.GetBool(prefix + "ENABLED"),
			Priority: viper.GetInt(prefix + "PRIORITY"),

			Categories: categories,

			Server:  viper.GetString(prefix + "SERVER"),
			Channel: viper.GetString(prefix + "CHANNEL"),
			BotNick: viper.GetString(prefix + "BOT"),
			Nick:    viper.GetString(prefix + "NICK"),

			RowSelector:   viper.GetString(prefix + "ROW_SELECTOR"),
			TitleSelector: viper.GetString(prefix + "TITLE_SELECTOR"),
			LinkSelector:  viper.GetString(prefix + "LINK_SELECTOR"),
			SizeSelector:  viper.GetString(prefix + "SIZE_SELECTOR"),
		})
	}

	return providers, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
