package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "APP"

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Storage  *StorageConfig  `mapstructure:"storage"`
	Mail     *MailConfig     `mapstructure:"mail"`
	Render   *RenderConfig   `mapstructure:"render"`
	Scanner  *ScannerConfig  `mapstructure:"scanner"`

	v       *viper.Viper
	mu      sync.RWMutex
	reloads []func(*AppConfig)
}

type APIConfig struct {
	Port               string   `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	PublicBaseURL      string   `mapstructure:"public_base_url"`
	Environment        string   `mapstructure:"environment"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a libpq keyword/value connection string.
func (c *PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DB, sslMode)
}

const (
	StorageGCS    = "gcs"
	StorageS3     = "s3"
	StorageBadger = "badger"
)

type StorageConfig struct {
	Backend         string        `mapstructure:"backend"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	DataDir         string        `mapstructure:"data_dir"`
	PublicURLBase   string        `mapstructure:"public_url_base"`
	SignedURLExpiry time.Duration `mapstructure:"signed_url_expiry"`
}

type MailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

type RenderConfig struct {
	Supersample       int           `mapstructure:"supersample"`
	BackgroundTimeout time.Duration `mapstructure:"background_timeout"`
}

type ScannerConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.environment", "dev")
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("storage.backend", StorageBadger)
	v.SetDefault("storage.data_dir", ".data/artifacts")
	v.SetDefault("mail.port", 587)
	v.SetDefault("render.supersample", 2)
	v.SetDefault("render.background_timeout", "5s")
	v.SetDefault("scanner.sample_interval", "500ms")
}

// Load reads the YAML file at path. Any key can be overridden from the
// environment as APP_<SECTION>_<KEY>, e.g. APP_API_JWT_SIGNING_KEY.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	conf := &AppConfig{v: v}
	if err := conf.decode(); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("conf.Validate -> %w", err)
	}

	return conf, nil
}

func (c *AppConfig) decode() error {
	if err := c.v.Unmarshal(c); err != nil {
		return fmt.Errorf("v.Unmarshal -> %w", err)
	}
	if c.API.PublicBaseURL == "" {
		c.API.PublicBaseURL = c.API.BaseURL
	}
	return nil
}

func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.API, validation.Required),
		validation.Field(&c.Gin, validation.Required),
		validation.Field(&c.Postgres, validation.Required),
		validation.Field(&c.Storage, validation.Required),
		validation.Field(&c.Render, validation.Required),
		validation.Field(&c.Scanner, validation.Required),
		validation.Field(&c.Mail),
	)
}

func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.PublicBaseURL, validation.Required, is.URL),
		validation.Field(&c.Environment, validation.Required, validation.In("dev", "test", "prod")),
		validation.Field(&c.JWTSigningKey, validation.Required, validation.Length(16, 0)),
	)
}

func (c *GinConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In("debug", "release", "test")),
	)
}

func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SSLMode, validation.In("disable", "allow", "prefer", "require", "verify-ca", "verify-full")),
	)
}

// requiredIf returns Required when cond holds and no rule otherwise.
func requiredIf(cond bool, rules ...validation.Rule) []validation.Rule {
	if cond {
		return append([]validation.Rule{validation.Required}, rules...)
	}
	return rules
}

func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StorageGCS, StorageS3, StorageBadger)),
		validation.Field(&c.Bucket, requiredIf(c.Backend != StorageBadger)...),
		validation.Field(&c.DataDir, requiredIf(c.Backend == StorageBadger)...),
		validation.Field(&c.PublicURLBase, is.URL),
		validation.Field(&c.Endpoint, is.URL),
	)
}

func (c *MailConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, requiredIf(c.Enabled)...),
		validation.Field(&c.Port, requiredIf(c.Enabled, validation.Min(1), validation.Max(65535))...),
		validation.Field(&c.FromAddress, requiredIf(c.Enabled, is.Email)...),
	)
}

func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Supersample, validation.Required, validation.Min(1), validation.Max(4)),
		validation.Field(&c.BackgroundTimeout, validation.Required),
	)
}

func (c *ScannerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SampleInterval, validation.Required, validation.Min(50*time.Millisecond)),
	)
}

// OnReload registers fn to run after the render or scanner section changed on
// disk and the new values passed validation.
func (c *AppConfig) OnReload(fn func(*AppConfig)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloads = append(c.reloads, fn)
}

// RenderSettings and ScannerSettings return copies safe to read while a reload
// is in progress.
func (c *AppConfig) RenderSettings() RenderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.Render
}

func (c *AppConfig) ScannerSettings() ScannerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.Scanner
}

// Watch hot-reloads the render and scanner sections. Other sections need a
// restart; changes to them are ignored.
func (c *AppConfig) Watch() {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c.reload(e.Name)
	})
	c.v.WatchConfig()
}

func (c *AppConfig) reload(name string) {
	var render RenderConfig
	var scanner ScannerConfig
	if err := c.v.UnmarshalKey("render", &render); err != nil {
		zap.L().Warn("config reload: render section", zap.String("file", name), zap.Error(err))
		return
	}
	if err := c.v.UnmarshalKey("scanner", &scanner); err != nil {
		zap.L().Warn("config reload: scanner section", zap.String("file", name), zap.Error(err))
		return
	}
	if err := render.Validate(); err != nil {
		zap.L().Warn("config reload rejected", zap.String("section", "render"), zap.Error(err))
		return
	}
	if err := scanner.Validate(); err != nil {
		zap.L().Warn("config reload rejected", zap.String("section", "scanner"), zap.Error(err))
		return
	}

	c.mu.Lock()
	*c.Render = render
	*c.Scanner = scanner
	hooks := append([]func(*AppConfig){}, c.reloads...)
	c.mu.Unlock()

	zap.L().Info("config reloaded",
		zap.String("file", name),
		zap.Int("render_supersample", render.Supersample),
		zap.Duration("scanner_sample_interval", scanner.SampleInterval),
	)
	for _, fn := range hooks {
		fn(c)
	}
}
