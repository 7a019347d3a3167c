package config

import "time"

// Config holds server and client configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxFramesPerSecond int           `mapstructure:"max_frames_per_second" yaml:"max_frames_per_second"`
	SendBuffer         int           `mapstructure:"send_buffer" yaml:"send_buffer"`

	Rooms     RoomsConfig   `mapstructure:"rooms" yaml:"rooms"`
	NoteQuota QuotaConfig   `mapstructure:"note_quota" yaml:"note_quota"`
	Tracing   TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Client    ClientConfig  `mapstructure:"client" yaml:"client"`
}

// RoomsConfig tunes room defaults and message limits.
type RoomsConfig struct {
	DefaultColor string `mapstructure:"default_color" yaml:"default_color"`
	LobbyColor   string `mapstructure:"lobby_color" yaml:"lobby_color"`
	NameMaxLen   int    `mapstructure:"name_max_len" yaml:"name_max_len"`
	ChatMaxLen   int    `mapstructure:"chat_max_len" yaml:"chat_max_len"`
	// EnforceCrownSolo drops note batches from non-holders in crown-solo rooms.
	// Off by default: clients are expected to gate themselves.
	EnforceCrownSolo bool `mapstructure:"enforce_crown_solo" yaml:"enforce_crown_solo"`
}

// QuotaConfig configures the note quota policy.
type QuotaConfig struct {
	Enabled bool        `mapstructure:"enabled" yaml:"enabled"`
	Lobby   QuotaParams `mapstructure:"lobby" yaml:"lobby"`
	Room    QuotaParams `mapstructure:"room" yaml:"room"`
	Owner   QuotaParams `mapstructure:"owner" yaml:"owner"`
}

// QuotaParams is a note budget: Allowance notes refilled every two seconds, bursting up to Max.
type QuotaParams struct {
	Allowance int `mapstructure:"allowance" yaml:"allowance"`
	Max       int `mapstructure:"max" yaml:"max"`
}

// TracingConfig configures OpenTelemetry export. Nothing is exported without an endpoint.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// ClientConfig holds settings for the bundled terminal client.
type ClientConfig struct {
	URL                string        `mapstructure:"url" yaml:"url"`
	Room               string        `mapstructure:"room" yaml:"room"`
	Name               string        `mapstructure:"name" yaml:"name"`
	PingInterval       time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	FlushInterval      time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	ConvergenceWindow  time.Duration `mapstructure:"convergence_window" yaml:"convergence_window"`
	ConvergenceSteps   int           `mapstructure:"convergence_steps" yaml:"convergence_steps"`
	ReconnectThreshold int           `mapstructure:"reconnect_threshold" yaml:"reconnect_threshold"`
	BackoffBase        time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	BackoffCeiling     time.Duration `mapstructure:"backoff_ceiling" yaml:"backoff_ceiling"`
	MinConnectSpacing  time.Duration `mapstructure:"min_connect_spacing" yaml:"min_connect_spacing"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		AllowedOrigins:     []string{"*"},
		MaxMessageBytes:    1 << 16,
		MaxFramesPerSecond: 60,
		SendBuffer:         256,
		Rooms: RoomsConfig{
			DefaultColor: "#3b5054",
			LobbyColor:   "#73b3cc",
			NameMaxLen:   40,
			ChatMaxLen:   512,
		},
		NoteQuota: QuotaConfig{
			Enabled: true,
			Lobby:   QuotaParams{Allowance: 200, Max: 600},
			Room:    QuotaParams{Allowance: 400, Max: 1200},
			Owner:   QuotaParams{Allowance: 600, Max: 1800},
		},
		Tracing: TracingConfig{
			Enabled:     true,
			ServiceName: "pianoroom",
			SampleRatio: 1,
		},
		Client: ClientConfig{
			URL:                "ws://localhost:8080/ws",
			Room:               "lobby",
			PingInterval:       20 * time.Second,
			FlushInterval:      200 * time.Millisecond,
			ConvergenceWindow:  time.Second,
			ConvergenceSteps:   50,
			ReconnectThreshold: 3,
			BackoffBase:        time.Second,
			BackoffCeiling:     30 * time.Second,
			MinConnectSpacing:  2 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero top-level and client identity values from other.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Client.URL != "" {
		c.Client.URL = other.Client.URL
	}
	if other.Client.Room != "" {
		c.Client.Room = other.Client.Room
	}
	if other.Client.Name != "" {
		c.Client.Name = other.Client.Name
	}
}
