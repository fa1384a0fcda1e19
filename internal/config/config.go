package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig holds the live-map tuning knobs. Every value has a
// default; operators rarely touch these.
type EngineConfig struct {
	PopupTimeout     time.Duration `json:"popupTimeout" mapstructure:"popupTimeout"`
	PopupInterval    time.Duration `json:"popupInterval" mapstructure:"popupInterval"`
	TrailMinDistance float64       `json:"trailMinDistance" mapstructure:"trailMinDistance"`
	TrailMaxAge      time.Duration `json:"trailMaxAge" mapstructure:"trailMaxAge"`
	TrailMaxPoints   int           `json:"trailMaxPoints" mapstructure:"trailMaxPoints"`
	HeadingMinMove   float64       `json:"headingMinMove" mapstructure:"headingMinMove"`
	HeatmapThrottle  time.Duration `json:"heatmapThrottle" mapstructure:"heatmapThrottle"`
}

// APIConfig holds the upstream REST endpoint settings and the poll
// periods for each data kind.
type APIConfig struct {
	BaseURL     string        `json:"baseUrl" mapstructure:"baseUrl"`
	Username    string        `json:"username" mapstructure:"username"`
	Password    string        `json:"password" mapstructure:"password"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	UAVPoll     time.Duration `json:"uavPoll" mapstructure:"uavPoll"`
	TaskPoll    time.Duration `json:"taskPoll" mapstructure:"taskPoll"`
	TeamPoll    time.Duration `json:"teamPoll" mapstructure:"teamPoll"`
	WeatherPoll time.Duration `json:"weatherPoll" mapstructure:"weatherPoll"`
	EventPoll   time.Duration `json:"eventPoll" mapstructure:"eventPoll"`
	EventLimit  int           `json:"eventLimit" mapstructure:"eventLimit"`
}

// StreamConfig holds the inbound telemetry push connection settings.
type StreamConfig struct {
	URL              string        `json:"url" mapstructure:"url"`
	Topic            string        `json:"topic" mapstructure:"topic"`
	ReconnectMin     time.Duration `json:"reconnectMin" mapstructure:"reconnectMin"`
	ReconnectMax     time.Duration `json:"reconnectMax" mapstructure:"reconnectMax"`
	HandshakeTimeout time.Duration `json:"handshakeTimeout" mapstructure:"handshakeTimeout"`
}

// RenderConfig holds the map display websocket settings.
type RenderConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// OTelConfig holds OpenTelemetry export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the metrics sink settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./livemaplogs")

	viper.SetDefault("api.baseUrl", "http://localhost:8080")
	viper.SetDefault("api.username", "")
	viper.SetDefault("api.password", "")
	viper.SetDefault("api.timeout", "10s")
	viper.SetDefault("api.uavPoll", "2s")
	viper.SetDefault("api.taskPoll", "5s")
	viper.SetDefault("api.teamPoll", "10s")
	viper.SetDefault("api.weatherPoll", "60s")
	viper.SetDefault("api.eventPoll", "5s")
	viper.SetDefault("api.eventLimit", 20)

	viper.SetDefault("stream.url", "ws://localhost:8080/ws")
	viper.SetDefault("stream.topic", "/topic/telemetry")
	viper.SetDefault("stream.reconnectMin", "1s")
	viper.SetDefault("stream.reconnectMax", "30s")
	viper.SetDefault("stream.handshakeTimeout", "10s")

	viper.SetDefault("render.url", "ws://localhost:9780/display")
	viper.SetDefault("render.secret", "")

	viper.SetDefault("engine.popupTimeout", "6s")
	viper.SetDefault("engine.popupInterval", "3s")
	viper.SetDefault("engine.trailMinDistance", 2.0)
	viper.SetDefault("engine.trailMaxAge", "10s")
	viper.SetDefault("engine.trailMaxPoints", 50)
	viper.SetDefault("engine.headingMinMove", 1.0)
	viper.SetDefault("engine.heatmapThrottle", "500ms")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "livemap-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "livemap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("livemap.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetEngineConfig returns the live-map tuning settings.
func GetEngineConfig() EngineConfig {
	return EngineConfig{
		PopupTimeout:     viper.GetDuration("engine.popupTimeout"),
		PopupInterval:    viper.GetDuration("engine.popupInterval"),
		TrailMinDistance: viper.GetFloat64("engine.trailMinDistance"),
		TrailMaxAge:      viper.GetDuration("engine.trailMaxAge"),
		TrailMaxPoints:   viper.GetInt("engine.trailMaxPoints"),
		HeadingMinMove:   viper.GetFloat64("engine.headingMinMove"),
		HeatmapThrottle:  viper.GetDuration("engine.heatmapThrottle"),
	}
}

// GetAPIConfig returns the upstream REST settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:     viper.GetString("api.baseUrl"),
		Username:    viper.GetString("api.username"),
		Password:    viper.GetString("api.password"),
		Timeout:     viper.GetDuration("api.timeout"),
		UAVPoll:     viper.GetDuration("api.uavPoll"),
		TaskPoll:    viper.GetDuration("api.taskPoll"),
		TeamPoll:    viper.GetDuration("api.teamPoll"),
		WeatherPoll: viper.GetDuration("api.weatherPoll"),
		EventPoll:   viper.GetDuration("api.eventPoll"),
		EventLimit:  viper.GetInt("api.eventLimit"),
	}
}

// GetStreamConfig returns the telemetry push connection settings.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		URL:              viper.GetString("stream.url"),
		Topic:            viper.GetString("stream.topic"),
		ReconnectMin:     viper.GetDuration("stream.reconnectMin"),
		ReconnectMax:     viper.GetDuration("stream.reconnectMax"),
		HandshakeTimeout: viper.GetDuration("stream.handshakeTimeout"),
	}
}

// GetRenderConfig returns the map display websocket settings.
func GetRenderConfig() RenderConfig {
	return RenderConfig{
		URL:    viper.GetString("render.url"),
		Secret: viper.GetString("render.secret"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the metrics sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}
