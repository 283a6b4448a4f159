package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MAPVIEW"

// RouteConfig configures the routing service client and the local stub.
type RouteConfig struct {
	ServiceURL  string
	Path        string
	Timeout     time.Duration
	StubEnabled bool
}

// ViewConfig holds the defaults and limits applied to map views.
type ViewConfig struct {
	AnimationDuration time.Duration
	DisplayRefreshHz  int
	MaxViews          int
	OverlayOutline    bool
	OverlayLabel      bool
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	RateLimitPerMinute int
	CORSOrigins        []string
}

// KafkaConfig configures route event publishing.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// ServiceConfig holds all configuration for the map view service.
type ServiceConfig struct {
	Port   string
	AppEnv string
	Route  RouteConfig
	View   ViewConfig
	HTTP   HTTPConfig
	Kafka  KafkaConfig
}

// Load reads configuration from MAPVIEW_* environment variables, on top of
// an optional file named by MAPVIEW_CONFIG_FILE.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &ServiceConfig{
		Port:   v.GetString("PORT"),
		AppEnv: v.GetString("APP_ENV"),
		Route: RouteConfig{
			ServiceURL:  v.GetString("ROUTE_SERVICE_URL"),
			Path:        v.GetString("ROUTE_PATH"),
			Timeout:     v.GetDuration("ROUTE_TIMEOUT"),
			StubEnabled: v.GetBool("ROUTE_STUB_ENABLED"),
		},
		View: ViewConfig{
			AnimationDuration: v.GetDuration("ANIMATION_DURATION"),
			DisplayRefreshHz:  v.GetInt("DISPLAY_REFRESH_HZ"),
			MaxViews:          v.GetInt("MAX_VIEWS"),
			OverlayOutline:    v.GetBool("OVERLAY_OUTLINE"),
			OverlayLabel:      v.GetBool("OVERLAY_LABEL"),
		},
		HTTP: HTTPConfig{
			RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
			CORSOrigins:        splitList(v.GetString("CORS_ORIGINS")),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("KAFKA_ENABLED"),
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ROUTE_SERVICE_URL", "http://localhost:8080")
	v.SetDefault("ROUTE_PATH", "/api/v1/navigation/route")
	v.SetDefault("ROUTE_TIMEOUT", "10s")
	v.SetDefault("ROUTE_STUB_ENABLED", true)
	v.SetDefault("ANIMATION_DURATION", "3s")
	v.SetDefault("DISPLAY_REFRESH_HZ", 60)
	v.SetDefault("MAX_VIEWS", 1000)
	v.SetDefault("OVERLAY_OUTLINE", true)
	v.SetDefault("OVERLAY_LABEL", true)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 100)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "mapview.route-events")
}

// Validate reports the first invalid setting.
func (c *ServiceConfig) Validate() error {
	u, err := url.Parse(c.Route.ServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ROUTE_SERVICE_URL %q", c.Route.ServiceURL)
	}
	if c.Route.Timeout <= 0 {
		return errors.New("ROUTE_TIMEOUT must be positive")
	}
	if c.View.AnimationDuration <= 0 {
		return errors.New("ANIMATION_DURATION must be positive")
	}
	if c.View.DisplayRefreshHz <= 0 || c.View.DisplayRefreshHz > 1000 {
		return fmt.Errorf("DISPLAY_REFRESH_HZ must be in 1..1000, got %d", c.View.DisplayRefreshHz)
	}
	if c.View.MaxViews < 0 {
		return errors.New("MAX_VIEWS must not be negative")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required when KAFKA_ENABLED")
	}
	return nil
}

// IsDevelopment reports whether the service runs in the development env.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
