package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "PIANOROOM"
	envConfigDefaultPath = "PIANOROOM_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("max_frames_per_second", cfg.MaxFramesPerSecond)
	v.SetDefault("send_buffer", cfg.SendBuffer)

	v.SetDefault("rooms.default_color", cfg.Rooms.DefaultColor)
	v.SetDefault("rooms.lobby_color", cfg.Rooms.LobbyColor)
	v.SetDefault("rooms.name_max_len", cfg.Rooms.NameMaxLen)
	v.SetDefault("rooms.chat_max_len", cfg.Rooms.ChatMaxLen)
	v.SetDefault("rooms.enforce_crown_solo", cfg.Rooms.EnforceCrownSolo)

	v.SetDefault("note_quota.enabled", cfg.NoteQuota.Enabled)
	v.SetDefault("note_quota.lobby.allowance", cfg.NoteQuota.Lobby.Allowance)
	v.SetDefault("note_quota.lobby.max", cfg.NoteQuota.Lobby.Max)
	v.SetDefault("note_quota.room.allowance", cfg.NoteQuota.Room.Allowance)
	v.SetDefault("note_quota.room.max", cfg.NoteQuota.Room.Max)
	v.SetDefault("note_quota.owner.allowance", cfg.NoteQuota.Owner.Allowance)
	v.SetDefault("note_quota.owner.max", cfg.NoteQuota.Owner.Max)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)

	v.SetDefault("client.url", cfg.Client.URL)
	v.SetDefault("client.room", cfg.Client.Room)
	v.SetDefault("client.name", cfg.Client.Name)
	v.SetDefault("client.ping_interval", cfg.Client.PingInterval)
	v.SetDefault("client.flush_interval", cfg.Client.FlushInterval)
	v.SetDefault("client.convergence_window", cfg.Client.ConvergenceWindow)
	v.SetDefault("client.convergence_steps", cfg.Client.ConvergenceSteps)
	v.SetDefault("client.reconnect_threshold", cfg.Client.ReconnectThreshold)
	v.SetDefault("client.backoff_base", cfg.Client.BackoffBase)
	v.SetDefault("client.backoff_ceiling", cfg.Client.BackoffCeiling)
	v.SetDefault("client.min_connect_spacing", cfg.Client.MinConnectSpacing)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
