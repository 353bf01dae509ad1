package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config.json or the environment.
type AppConfig struct {
	AppPort            string
	GinMode            string
	SecretKey          string
	AdminEmails        []string
	RateLimitPerMinute int
	AllowedOrigins     []string

	Session  SessionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	SMTP     SMTPConfig
	OAuth    OAuthConfig
	Site     SiteConfig
}

// SessionConfig controls the identity cookie.
type SessionConfig struct {
	CookieName    string `json:"CookieName"`
	FlashCookie   string `json:"FlashCookie"`
	TokenTTLHours int    `json:"TokenTTLHours"`
	CookieSecure  bool   `json:"CookieSecure"`
}

// DatabaseConfig selects the GORM dialect and its connection parameters.
// Driver is one of "sqlite", "mysql" or "postgres".
type DatabaseConfig struct {
	Driver   string `json:"Driver"`
	URI      string `json:"DatabaseURI"`
	Host     string `json:"DBHost"`
	Port     string `json:"DBPort"`
	User     string `json:"DBUser"`
	Password string `json:"DBPassword"`
	Name     string `json:"DBName"`
}

// RedisConfig is optional; an empty Host disables Redis.
type RedisConfig struct {
	Host     string `json:"RedisHost"`
	Port     int    `json:"RedisPort"`
	DB       int    `json:"RedisDB"`
	Password string `json:"RedisPassword"`
}

// LogConfig drives the zap + lumberjack setup.
type LogConfig struct {
	Level      string `json:"Level"`
	Path       string `json:"Path"`
	GinPath    string `json:"GinPath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   bool   `json:"Compress"`
}

// SMTPConfig is used for contact form notifications.
type SMTPConfig struct {
	Host     string `json:"SMTPHost"`
	Port     int    `json:"SMTPPort"`
	Username string `json:"SMTPUsername"`
	Password string `json:"SMTPPassword"`
	From     string `json:"SMTPFrom"`
	FromName string `json:"SMTPFromName"`
	TLS      bool   `json:"SMTPTLS"`
}

// OAuthConfig holds social login credentials. Providers without credentials stay disabled.
type OAuthConfig struct {
	RedirectBase       string `json:"OAuthRedirectBase"`
	GitHubClientID     string `json:"GitHubClientID"`
	GitHubClientSecret string `json:"GitHubClientSecret"`
	GoogleClientID     string `json:"GoogleClientID"`
	GoogleClientSecret string `json:"GoogleClientSecret"`
}

// EnabledProviders lists the social login providers that have credentials.
func (o OAuthConfig) EnabledProviders() []string {
	var out []string
	if o.GitHubClientID != "" && o.GitHubClientSecret != "" {
		out = append(out, "github")
	}
	if o.GoogleClientID != "" && o.GoogleClientSecret != "" {
		out = append(out, "google")
	}
	return out
}

// SiteConfig is rendered on every page.
type SiteConfig struct {
	Title          string   `json:"Title"`
	Tagline        string   `json:"Tagline"`
	NoticeHTML     string   `json:"NoticeHTML"`
	FooterHTML     string   `json:"FooterHTML"`
	ContactInbox   string   `json:"ContactInbox"`
	OAuthProviders []string `json:"-"`
}

// ErrMissingSecret is returned when no session signing secret was configured.
var ErrMissingSecret = errors.New("SECRET_KEY must be set in config.json or the environment")

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort            string   `json:"AppPort"`
		GinMode            string   `json:"GinMode"`
		SecretKey          string   `json:"SecretKey"`
		AdminEmails        []string `json:"AdminEmails"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute"`
		AllowedOrigins     []string `json:"AllowedOrigins"`
	} `json:"app"`
	Session  SessionConfig  `json:"session"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Log      LogConfig      `json:"log"`
	SMTP     SMTPConfig     `json:"smtp"`
	OAuth    OAuthConfig    `json:"oauth"`
	Site     SiteConfig     `json:"site"`
}

// Load builds the configuration. Precedence: JSON file -> defaults -> environment variable overrides.
// A missing file is not an error; malformed JSON is. Variables from a local .env
// file are added to the environment without replacing ones already set.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: read .env: %w", err)
	}

	if err := loadJSONConfig(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	if cfg.SecretKey == "" {
		return cfg, ErrMissingSecret
	}
	cfg.Site.OAuthProviders = cfg.OAuth.EnabledProviders()
	return cfg, nil
}

func loadJSONConfig(path string, out *AppConfig) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var raw fileConfig
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	out.AppPort = raw.App.AppPort
	out.GinMode = raw.App.GinMode
	out.SecretKey = raw.App.SecretKey
	out.AdminEmails = raw.App.AdminEmails
	out.RateLimitPerMinute = raw.App.RateLimitPerMinute
	out.AllowedOrigins = raw.App.AllowedOrigins
	out.Session = raw.Session
	out.Database = raw.Database
	out.Redis = raw.Redis
	out.Log = raw.Log
	out.SMTP = raw.SMTP
	out.OAuth = raw.OAuth
	out.Site = raw.Site
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "blog_token"
	}
	if c.Session.FlashCookie == "" {
		c.Session.FlashCookie = "blog_session"
	}
	if c.Session.TokenTTLHours == 0 {
		c.Session.TokenTTLHours = 72
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == "" {
			c.Database.Port = "3306"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "blog"
		}
	case "postgres":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == "" {
			c.Database.Port = "5432"
		}
		if c.Database.User == "" {
			c.Database.User = "postgres"
		}
		if c.Database.Name == "" {
			c.Database.Name = "blog"
		}
	default:
		if c.Database.Name == "" {
			c.Database.Name = "data/blog.db"
		}
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.OAuth.RedirectBase == "" {
		c.OAuth.RedirectBase = "http://localhost:8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}
	if c.Site.Title == "" {
		c.Site.Title = "My Blog"
	}
	if c.Site.Tagline == "" {
		c.Site.Tagline = "A collection of random musings."
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	var errs []error
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: invalid integer value %s=%q", key, v))
			return
		}
		*dst = i
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	setList := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitAndTrim(v)
		}
	}

	setString("APP_PORT", &c.AppPort)
	setString("GIN_MODE", &c.GinMode)
	setString("SECRET_KEY", &c.SecretKey)
	setList("ADMIN_EMAILS", &c.AdminEmails)
	setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	setList("CORS_ALLOWED_ORIGINS", &c.AllowedOrigins)

	setString("SESSION_COOKIE_NAME", &c.Session.CookieName)
	setInt("SESSION_TTL_HOURS", &c.Session.TokenTTLHours)
	setBool("COOKIE_SECURE", &c.Session.CookieSecure)

	setString("DB_DRIVER", &c.Database.Driver)
	setString("DATABASE_URI", &c.Database.URI)
	setString("DB_HOST", &c.Database.Host)
	setString("DB_PORT", &c.Database.Port)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Name)

	setString("REDIS_HOST", &c.Redis.Host)
	setInt("REDIS_PORT", &c.Redis.Port)
	setInt("REDIS_DB", &c.Redis.DB)
	setString("REDIS_PASSWORD", &c.Redis.Password)

	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_PATH", &c.Log.Path)
	setString("GIN_LOG_PATH", &c.Log.GinPath)
	setInt("LOG_MAX_SIZE_MB", &c.Log.MaxSizeMB)
	setInt("LOG_MAX_BACKUPS", &c.Log.MaxBackups)
	setInt("LOG_MAX_AGE_DAYS", &c.Log.MaxAgeDays)
	setBool("LOG_COMPRESS", &c.Log.Compress)

	setString("SMTP_HOST", &c.SMTP.Host)
	setInt("SMTP_PORT", &c.SMTP.Port)
	setString("SMTP_USERNAME", &c.SMTP.Username)
	setString("SMTP_PASSWORD", &c.SMTP.Password)
	setString("SMTP_FROM", &c.SMTP.From)
	setString("SMTP_FROM_NAME", &c.SMTP.FromName)
	setBool("SMTP_TLS", &c.SMTP.TLS)

	setString("OAUTH_REDIRECT_BASE_URL", &c.OAuth.RedirectBase)
	setString("GITHUB_CLIENT_ID", &c.OAuth.GitHubClientID)
	setString("GITHUB_CLIENT_SECRET", &c.OAuth.GitHubClientSecret)
	setString("GOOGLE_CLIENT_ID", &c.OAuth.GoogleClientID)
	setString("GOOGLE_CLIENT_SECRET", &c.OAuth.GoogleClientSecret)

	setString("SITE_TITLE", &c.Site.Title)
	setString("SITE_TAGLINE", &c.Site.Tagline)
	setString("CONTACT_INBOX", &c.Site.ContactInbox)

	return errors.Join(errs...)
}

// IsAdminEmail reports whether email is listed in AdminEmails (case-insensitive).
func (c AppConfig) IsAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
