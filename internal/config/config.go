package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// StorageConfig selects and configures the timeline persistence backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // "memory" | "sqlite" | "postgres"
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
}

// PlaybackConfig holds the playback/replay tuning knobs
type PlaybackConfig struct {
	VariationSeed int64         `json:"variationSeed" mapstructure:"variationSeed"`
	ReplayBudget  time.Duration `json:"replayBudget" mapstructure:"replayBudget"`
	ReplayStep    time.Duration `json:"replayStep" mapstructure:"replayStep"`
	TickRate      time.Duration `json:"tickRate" mapstructure:"tickRate"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./stratlogs")

	viper.SetDefault("arena", "kokytos")

	viper.SetDefault("playback.variationSeed", 0)
	viper.SetDefault("playback.replayBudget", "5s")
	viper.SetDefault("playback.replayStep", "10ms")
	viper.SetDefault("playback.tickRate", "16ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./strats")
	viper.SetDefault("storage.memory.compressOutput", true)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "stratsim")
	viper.SetDefault("db.sqlitePath", "./stratsim.db")

	viper.SetDefault("presenter.websocket.enabled", false)
	viper.SetDefault("presenter.websocket.url", "ws://localhost:5100/scene")
	viper.SetDefault("presenter.websocket.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "stratsim-metrics")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("stratsim.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Playback returns the playback tuning section.
func Playback() PlaybackConfig {
	return PlaybackConfig{
		VariationSeed: viper.GetInt64("playback.variationSeed"),
		ReplayBudget:  viper.GetDuration("playback.replayBudget"),
		ReplayStep:    viper.GetDuration("playback.replayStep"),
		TickRate:      viper.GetDuration("playback.tickRate"),
	}
}

// Storage returns the storage backend section.
func Storage() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
	}
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
