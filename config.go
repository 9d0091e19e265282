package printshop

import (
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/eringen/printshop/sectioncache"
)

// SiteConfig holds all configuration for a printshop admin server. Field
// tags match the keys read from config files and PRINTSHOP_* variables.
type SiteConfig struct {
	Name string `mapstructure:"name"` // Shop name (default "Gráfica")
	URL  string `mapstructure:"url"`  // Canonical URL (default "http://localhost:3000")

	Addr         string `mapstructure:"addr"`         // Listen address (default ":3000")
	DatabasePath string `mapstructure:"databasePath"` // SQLite path (default "data/printshop.db")

	ActivityEnabled       bool   `mapstructure:"activityEnabled"`       // Record edit history (default true via CLI)
	ActivityDatabasePath  string `mapstructure:"activityDatabasePath"`  // Activity SQLite path (default "data/activity.db")
	ActivityRetentionDays int    `mapstructure:"activityRetentionDays"` // Days of history kept (default 180)

	AdminUser     string `mapstructure:"adminUser"`     // Editor id attached to writes (default "admin")
	AdminPassword string `mapstructure:"adminPassword"` // Required: admin login password
	SessionSecret string `mapstructure:"sessionSecret"` // Required: session encryption secret
	CookieSecure  bool   `mapstructure:"cookieSecure"`  // Set true for HTTPS

	RedisURL     string `mapstructure:"redisURL"`     // Enables cross-process cache invalidation
	RedisChannel string `mapstructure:"redisChannel"` // Pub/sub channel (default sectioncache.DefaultChannel)

	LogLevel string `mapstructure:"logLevel"` // debug, info, warn, error, off (default "info")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Gráfica"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/printshop.db"
	}
	if c.ActivityDatabasePath == "" {
		c.ActivityDatabasePath = "data/activity.db"
	}
	if c.ActivityRetentionDays <= 0 {
		c.ActivityRetentionDays = 180
	}
	if c.AdminUser == "" {
		c.AdminUser = "admin"
	}
	if c.RedisChannel == "" {
		c.RedisChannel = sectioncache.DefaultChannel
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// logLevel maps LogLevel onto gommon levels. Unknown values mean info.
func (c SiteConfig) logLevel() log.Lvl {
	switch c.LogLevel {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory served under /public (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithRedisClient uses rc for the invalidation relay instead of dialing
// RedisURL.
func WithRedisClient(rc *redis.Client) Option {
	return func(a *App) {
		a.redis = rc
	}
}
