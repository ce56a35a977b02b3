package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/daemonp/bosch2mqtt/internal/util"
)

const envPrefix = "BOSCH2MQTT"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Panels        []PanelConfig       `yaml:"panels"`
	History       HistoryConfig       `yaml:"history"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Log           string              `yaml:"log"`
}

type MQTTConfig struct {
	ClientID           string `yaml:"client_id"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Keepalive          int    `yaml:"keepalive"`
	Password           string `yaml:"password"`
	QOS                int    `yaml:"qos"`
	Retain             *bool  `yaml:"retain"`
	Username           string `yaml:"username"`
	CA                 string `yaml:"ca"`
	Cert               string `yaml:"cert"`
	Key                string `yaml:"key"`
	RejectUnauthorized *bool  `yaml:"reject_unauthorized"`
	Prefix             string `yaml:"prefix"`
	Clean              bool   `yaml:"clean"`
}

// VerifyTLS reports whether the broker certificate is checked. Unset means
// it is.
func (m MQTTConfig) VerifyTLS() bool {
	return m.RejectUnauthorized == nil || *m.RejectUnauthorized
}

// RetainState reports whether entity state, attributes and availability are
// published retained. Unset means they are.
func (m MQTTConfig) RetainState() bool {
	return m.Retain == nil || *m.Retain
}

type HomeAssistantConfig struct {
	Discovery bool   `yaml:"discovery"`
	Prefix    string `yaml:"prefix"`
}

type PanelConfig struct {
	Name          string           `yaml:"name"`
	UniqueID      string           `yaml:"unique_id"`
	Driver        string           `yaml:"driver"`
	Host          string           `yaml:"host"`
	Port          int              `yaml:"port"`
	Password      string           `yaml:"password"`
	InstallerCode string           `yaml:"installer_code"`
	UserCode      string           `yaml:"user_code"`
	ArmingCode    string           `yaml:"arming_code"`
	ShowHistory   *bool            `yaml:"show_history"`
	HistoryCount  int              `yaml:"history_count"`
	Reconnect     ReconnectConfig  `yaml:"reconnect"`
	Simulator     *SimulatorConfig `yaml:"simulator"`
}

// HistoryEnabled reports whether the history and faults sensors are created.
// Unset means enabled.
func (p PanelConfig) HistoryEnabled() bool {
	return p.ShowHistory == nil || *p.ShowHistory
}

type ReconnectConfig struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

func (r ReconnectConfig) MinDelay() time.Duration { return parseDuration(r.Min, 5*time.Second) }
func (r ReconnectConfig) MaxDelay() time.Duration { return parseDuration(r.Max, 5*time.Minute) }

// SimulatorConfig describes the inventory served by the simulator driver.
type SimulatorConfig struct {
	Model    string        `yaml:"model"`
	Serial   string        `yaml:"serial"`
	Firmware string        `yaml:"firmware"`
	Areas    []NamedObject `yaml:"areas"`
	Points   []NamedObject `yaml:"points"`
	Doors    []NamedObject `yaml:"doors"`
	Outputs  []NamedObject `yaml:"outputs"`
}

type NamedObject struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type HistoryConfig struct {
	Backend   string      `yaml:"backend"`
	Path      string      `yaml:"path"`
	SaveDelay string      `yaml:"save_delay"`
	MaxEvents int         `yaml:"max_events"`
	Redis     RedisConfig `yaml:"redis"`
}

func (h HistoryConfig) Delay() time.Duration { return parseDuration(h.SaveDelay, 10*time.Second) }

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and defaults, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyEnv(os.Getenv)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(envPrefix + "_MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := getenv(envPrefix + "_REDIS_PASSWORD"); v != "" {
		c.History.Redis.Password = v
	}
	if v := getenv(envPrefix + "_INFLUXDB_TOKEN"); v != "" {
		c.InfluxDB.Token = v
	}
	for i := range c.Panels {
		p := &c.Panels[i]
		prefix := fmt.Sprintf("%s_PANEL_%d_", envPrefix, i)
		for suffix, field := range map[string]*string{
			"PASSWORD":       &p.Password,
			"INSTALLER_CODE": &p.InstallerCode,
			"USER_CODE":      &p.UserCode,
			"ARMING_CODE":    &p.ArmingCode,
		} {
			if v := getenv(prefix + suffix); v != "" {
				*field = v
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.MQTT.Host == "" {
		c.MQTT.Host = "localhost"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.Keepalive == 0 {
		c.MQTT.Keepalive = 60
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = "bosch2mqtt"
	}
	if c.HomeAssistant.Prefix == "" {
		c.HomeAssistant.Prefix = "homeassistant"
	}
	if c.Log == "" {
		c.Log = "info"
	}
	if c.History.Backend == "" {
		c.History.Backend = "file"
	}
	if c.History.Path == "" {
		c.History.Path = defaultHistoryPath()
	}
	if c.History.Redis.Addr == "" {
		c.History.Redis.Addr = "localhost:6379"
	}
	if c.History.Redis.Key == "" {
		c.History.Redis.Key = "bosch2mqtt:history"
	}
	for i := range c.Panels {
		p := &c.Panels[i]
		if p.Name == "" {
			p.Name = fmt.Sprintf("panel %d", i+1)
		}
		if p.UniqueID == "" {
			p.UniqueID = util.Slugify(p.Name)
		}
		if p.Driver == "" {
			p.Driver = "simulator"
		}
		if p.Port == 0 {
			p.Port = 7700
		}
	}
}

// Validate reports every problem found rather than stopping at the first.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Panels) == 0 {
		problems = append(problems, "at least one panel is required")
	}
	seen := make(map[string]bool)
	for i, p := range c.Panels {
		if p.Driver != "simulator" && p.Host == "" {
			problems = append(problems, fmt.Sprintf("panels[%d]: host is required", i))
		}
		if seen[p.UniqueID] {
			problems = append(problems, fmt.Sprintf("panels[%d]: duplicate unique_id %q", i, p.UniqueID))
		}
		seen[p.UniqueID] = true
		if p.HistoryCount < 0 {
			problems = append(problems, fmt.Sprintf("panels[%d]: history_count must not be negative", i))
		}
	}
	switch c.History.Backend {
	case "file", "redis":
	default:
		problems = append(problems, fmt.Sprintf("history.backend %q is not one of file, redis", c.History.Backend))
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		problems = append(problems, "mqtt.qos must be 0, 1 or 2")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		problems = append(problems, "influxdb.url and influxdb.bucket are required when enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bosch2mqtt_history.json"
	}
	return filepath.Join(home, ".cache", "bosch2mqtt", "history.json")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
