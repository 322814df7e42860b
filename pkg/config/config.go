// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/spf13/viper"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

// EnvPrefix is prepended to every environment override, e.g.
// SHIPBATTLE_SERVER_ADDRESS or SHIPBATTLE_CLIENT_TRANSPORT.
const EnvPrefix = "SHIPBATTLE"

// Config is the full configuration shared by the server and client binaries.
type Config struct {
	LogLevel       string               `mapstructure:"logLevel" json:"logLevel" jsonschema:"enum=DEBUG,enum=INFO,enum=WARN,enum=ERROR"`
	Server         ServerConfig         `mapstructure:"server" json:"server"`
	Client         ClientConfig         `mapstructure:"client" json:"client"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker" json:"circuitBreaker"`
	Sectors        []SectorConfig       `mapstructure:"sectors" json:"sectors"`
}

// ServerConfig contains the authoritative server settings
type ServerConfig struct {
	Address          string        `mapstructure:"address" json:"address"`
	WebSocketAddress string        `mapstructure:"websocketAddress" json:"websocketAddress,omitempty"`
	HealthPort       int           `mapstructure:"healthPort" json:"healthPort"`
	MaxClients       int           `mapstructure:"maxClients" json:"maxClients"`
	ReadTimeout      time.Duration `mapstructure:"readTimeout" json:"readTimeout"`
	WriteTimeout     time.Duration `mapstructure:"writeTimeout" json:"writeTimeout"`
	PlanTimeout      time.Duration `mapstructure:"planTimeout" json:"planTimeout"`
	ShipLevel        int           `mapstructure:"shipLevel" json:"shipLevel"`
	Seed             uint64        `mapstructure:"seed" json:"seed"`
	JournalDSN       string        `mapstructure:"journalDSN" json:"journalDSN,omitempty"`
	PacketsPerSecond float64       `mapstructure:"packetsPerSecond" json:"packetsPerSecond"`
	PacketBurst      int           `mapstructure:"packetBurst" json:"packetBurst"`
}

// ClientConfig contains the headless client settings
type ClientConfig struct {
	ServerAddress  string        `mapstructure:"serverAddress" json:"serverAddress"`
	Transport      string        `mapstructure:"transport" json:"transport" jsonschema:"enum=tcp,enum=ws"`
	PlayerName     string        `mapstructure:"playerName" json:"playerName"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" json:"connectTimeout"`
	FrameRate      int           `mapstructure:"frameRate" json:"frameRate"`
}

// CircuitBreakerConfig tunes the client's connection circuit breaker
type CircuitBreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"maxRequests" json:"maxRequests"`
	Interval            time.Duration `mapstructure:"interval" json:"interval"`
	Timeout             time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxConsecutiveFails uint32        `mapstructure:"maxConsecutiveFails" json:"maxConsecutiveFails"`
}

// SectorConfig describes a sector players may jump towards
type SectorConfig struct {
	ID   uint32  `mapstructure:"id" json:"id"`
	Name string  `mapstructure:"name" json:"name"`
	X    float64 `mapstructure:"x" json:"x"`
	Y    float64 `mapstructure:"y" json:"y"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "INFO")

	v.SetDefault("server.address", ":4566")
	v.SetDefault("server.websocketAddress", "")
	v.SetDefault("server.healthPort", 8080)
	v.SetDefault("server.maxClients", 16)
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.planTimeout", 4*time.Second)
	v.SetDefault("server.shipLevel", 3)
	v.SetDefault("server.seed", 0)
	v.SetDefault("server.journalDSN", "")
	v.SetDefault("server.packetsPerSecond", 20.0)
	v.SetDefault("server.packetBurst", 10)

	v.SetDefault("client.serverAddress", "localhost:4566")
	v.SetDefault("client.transport", "tcp")
	v.SetDefault("client.playerName", "pilot")
	v.SetDefault("client.connectTimeout", 10*time.Second)
	v.SetDefault("client.frameRate", 60)

	v.SetDefault("circuitBreaker.maxRequests", 3)
	v.SetDefault("circuitBreaker.interval", 60*time.Second)
	v.SetDefault("circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("circuitBreaker.maxConsecutiveFails", 5)

	v.SetDefault("sectors", []map[string]any{
		{"id": 1, "name": "Kepler Reach", "x": 0.0, "y": 0.0},
		{"id": 2, "name": "Vega Drift", "x": 4.0, "y": 1.5},
		{"id": 3, "name": "Orion Gate", "x": -2.5, "y": 3.0},
	})
}

// Load reads configuration from defaults, the optional JSON file at path and
// SHIPBATTLE_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("built-in configuration is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for values the binaries cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address must not be empty"))
	}
	if c.Server.HealthPort < 0 || c.Server.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("server.healthPort %d out of range", c.Server.HealthPort))
	}
	if c.Server.MaxClients <= 0 {
		errs = append(errs, errors.New("server.maxClients must be positive"))
	}
	if c.Server.PlanTimeout <= 0 {
		errs = append(errs, errors.New("server.planTimeout must be positive"))
	}
	if c.Server.ShipLevel < 1 {
		errs = append(errs, errors.New("server.shipLevel must be at least 1"))
	}
	if c.Server.PacketsPerSecond <= 0 || c.Server.PacketBurst <= 0 {
		errs = append(errs, errors.New("server packet rate and burst must be positive"))
	}

	switch c.Client.Transport {
	case "tcp", "ws":
	default:
		errs = append(errs, fmt.Errorf("client.transport %q must be tcp or ws", c.Client.Transport))
	}
	if c.Client.FrameRate <= 0 {
		errs = append(errs, errors.New("client.frameRate must be positive"))
	}
	if c.Client.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("client.connectTimeout must be positive"))
	}

	if c.CircuitBreaker.MaxConsecutiveFails == 0 {
		errs = append(errs, errors.New("circuitBreaker.maxConsecutiveFails must be positive"))
	}

	seen := make(map[uint32]bool, len(c.Sectors))
	for _, s := range c.Sectors {
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate sector id %d", s.ID))
		}
		seen[s.ID] = true
	}

	return errors.Join(errs...)
}

// SectorData converts the configured sectors to their wire form.
func (c *Config) SectorData() []entity.SectorData {
	sectors := make([]entity.SectorData, len(c.Sectors))
	for i, s := range c.Sectors {
		sectors[i] = entity.SectorData{ID: entity.SectorID(s.ID), Name: s.Name, X: s.X, Y: s.Y}
	}
	return sectors
}

// Schema renders the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(&Config{})
	schema.Title = "Ship battle configuration"
	schema.Description = "File format accepted by the server and client -config flag"
	return json.MarshalIndent(schema, "", "  ")
}
