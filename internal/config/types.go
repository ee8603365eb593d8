package config

// Config is the whole process configuration. All durations are Go duration
// strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Telegram   TelegramConfig   `json:"telegram"`
	Storage    StorageConfig    `json:"storage"`
	Driver     DriverConfig     `json:"driver"`
	Defaults   DefaultsConfig   `json:"defaults"`
	Metrics    MetricsConfig    `json:"metrics,omitempty"`
	Extensions ExtensionsConfig `json:"extensions"`

	// Tenants are applied on start and on every reload. Fields left empty are
	// not touched, so runtime changes made through the CLI survive.
	Tenants []TenantSeed `json:"tenants,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	Format  string        `json:"format,omitempty"` // console | json
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TelegramConfig configures the delivery sink. An empty token selects the
// log sink (dry run).
type TelegramConfig struct {
	Token          string `json:"token"`
	DefaultTarget  string `json:"default_target,omitempty"`
	ParseMode      string `json:"parse_mode,omitempty"`
	DisablePreview bool   `json:"disable_preview,omitempty"`
	APIURL         string `json:"api_url,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the tenant store.
//
// driver: "memory" (default), "file" or "sqlite".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DriverConfig tunes the tick loop.
//
// Defaults: tick "60s", delivery_timeout "15s".
type DriverConfig struct {
	Tick            string `json:"tick,omitempty"`
	DeliveryTimeout string `json:"delivery_timeout,omitempty"`
}

type DefaultsConfig struct {
	Timezone string `json:"timezone,omitempty"`
}

type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Path          string `json:"path,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

type ExtensionsConfig struct {
	Calendar ExtensionConfig `json:"calendar"`
	Weather  ExtensionConfig `json:"weather"`
}

// ExtensionConfig enables one extension. Namespace separates its tenant
// records in the store and defaults to the extension name.
type ExtensionConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace,omitempty"`
	// Seed fixes the weather sampler; 0 seeds from the clock.
	Seed int64 `json:"seed,omitempty"`
}

// TenantSeed is a tenant configured from the file rather than by command.
type TenantSeed struct {
	Extension string `json:"extension"`
	ID        string `json:"id"`
	Timezone  string `json:"timezone,omitempty"`
	Cadence   string `json:"cadence,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

const (
	ExtCalendar = "calendar"
	ExtWeather  = "weather"
)

// Extension returns the named extension's config.
func (c *Config) Extension(name string) (ExtensionConfig, bool) {
	switch name {
	case ExtCalendar:
		return c.Extensions.Calendar, true
	case ExtWeather:
		return c.Extensions.Weather, true
	}
	return ExtensionConfig{}, false
}

// NamespaceFor returns the store namespace of an extension.
func (c *Config) NamespaceFor(name string) string {
	if e, ok := c.Extension(name); ok && e.Namespace != "" {
		return e.Namespace
	}
	return name
}

// SeedsFor returns the tenant seeds for one extension.
func (c *Config) SeedsFor(name string) []TenantSeed {
	var out []TenantSeed
	for _, s := range c.Tenants {
		if s.Extension == name {
			out = append(out, s)
		}
	}
	return out
}
