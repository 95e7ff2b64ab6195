package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string        `mapstructure:"mode"`
	LogLevel string        `mapstructure:"log_level"`
	Port     int           `mapstructure:"port"`
	Signal   SignalConfig  `mapstructure:"signal"`
	ICE      ICEConfig     `mapstructure:"ice"`
	Call     CallConfig    `mapstructure:"call"`
	Capture  CaptureConfig `mapstructure:"capture"`
	Relay    RelayConfig   `mapstructure:"relay"`
}

// SignalConfig points the agent at the relay it exchanges call events through.
type SignalConfig struct {
	URL        string        `mapstructure:"url"`
	UserID     string        `mapstructure:"user_id"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendQueue  int           `mapstructure:"send_queue"`
}

// ICEConfig is handed once to every negotiation engine and never mutated afterwards.
type ICEConfig struct {
	Servers             []string      `mapstructure:"servers"`
	CandidatePoolSize   uint8         `mapstructure:"candidate_pool_size"`
	BundlePolicy        string        `mapstructure:"bundle_policy"`
	RTCPMuxPolicy       string        `mapstructure:"rtcp_mux_policy"`
	DisconnectedTimeout time.Duration `mapstructure:"disconnected_timeout"`
	FailedTimeout       time.Duration `mapstructure:"failed_timeout"`
	KeepAliveInterval   time.Duration `mapstructure:"keepalive_interval"`
}

type CallConfig struct {
	DisconnectGrace     time.Duration `mapstructure:"disconnect_grace"`
	CandidateFlushDelay time.Duration `mapstructure:"candidate_flush_delay"`
	StrayCandidateLimit int           `mapstructure:"stray_candidate_limit"`
	SendTimeout         time.Duration `mapstructure:"send_timeout"`
}

type IntRange struct {
	Min   int `mapstructure:"min"`
	Ideal int `mapstructure:"ideal"`
	Max   int `mapstructure:"max"`
}

type FloatRange struct {
	Min   float64 `mapstructure:"min"`
	Ideal float64 `mapstructure:"ideal"`
	Max   float64 `mapstructure:"max"`
}

type CaptureConfig struct {
	Width        IntRange   `mapstructure:"width"`
	Height       IntRange   `mapstructure:"height"`
	FrameRate    FloatRange `mapstructure:"frame_rate"`
	SampleRate   int        `mapstructure:"sample_rate"`
	ChannelCount int        `mapstructure:"channel_count"`
	VideoBitrate int        `mapstructure:"video_bitrate"`
	FrontDevice  string     `mapstructure:"front_device"`
	BackDevice   string     `mapstructure:"back_device"`
}

type RelayConfig struct {
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendQueue  int           `mapstructure:"send_queue"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
	"stun:stun.services.mozilla.com",
	"stun:stun.stunprotocol.org:3478",
}

var (
	ErrNoICEServers  = errors.New("ice.servers must not be empty")
	ErrInvalidGrace  = errors.New("call.disconnect_grace must be positive")
	ErrInvalidBundle = errors.New("ice.bundle_policy must be balanced, max-compat or max-bundle")
	ErrInvalidMux    = errors.New("ice.rtcp_mux_policy must be negotiate or require")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)

	v.SetDefault("signal.url", "ws://127.0.0.1:8090/ws")
	v.SetDefault("signal.user_id", "")
	v.SetDefault("signal.read_limit", 65536)
	v.SetDefault("signal.ping_period", "30s")
	v.SetDefault("signal.write_wait", "5s")
	v.SetDefault("signal.send_queue", 64)

	v.SetDefault("ice.servers", DefaultICEServers)
	v.SetDefault("ice.candidate_pool_size", 10)
	v.SetDefault("ice.bundle_policy", "max-bundle")
	v.SetDefault("ice.rtcp_mux_policy", "require")
	v.SetDefault("ice.disconnected_timeout", "5s")
	v.SetDefault("ice.failed_timeout", "25s")
	v.SetDefault("ice.keepalive_interval", "2s")

	v.SetDefault("call.disconnect_grace", "5s")
	v.SetDefault("call.candidate_flush_delay", "0s")
	v.SetDefault("call.stray_candidate_limit", 64)
	v.SetDefault("call.send_timeout", "5s")

	v.SetDefault("capture.width", map[string]any{"min": 320, "ideal": 640, "max": 1280})
	v.SetDefault("capture.height", map[string]any{"min": 240, "ideal": 480, "max": 720})
	v.SetDefault("capture.frame_rate", map[string]any{"min": 15, "ideal": 30, "max": 30})
	v.SetDefault("capture.sample_rate", 48000)
	v.SetDefault("capture.channel_count", 1)
	v.SetDefault("capture.video_bitrate", 1_500_000)
	v.SetDefault("capture.front_device", "")
	v.SetDefault("capture.back_device", "")

	v.SetDefault("relay.port", 8090)
	v.SetDefault("relay.read_limit", 65536)
	v.SetDefault("relay.ping_period", "30s")
	v.SetDefault("relay.write_wait", "5s")
	v.SetDefault("relay.send_queue", 64)
	v.SetDefault("relay.rate_limit", 200)
	v.SetDefault("relay.rate_window", "10s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (or the file named by CONFIG_FILE),
// falls back to defaults when the file is missing and lets PEERCALL_* env vars win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := os.Getenv("CONFIG_FILE")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("PEERCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Int("ice_servers", len(cfg.ICE.Servers)).
		Dur("grace", cfg.Call.DisconnectGrace).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.ICE.Servers) == 0 {
		return ErrNoICEServers
	}
	switch c.ICE.BundlePolicy {
	case "balanced", "max-compat", "max-bundle":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBundle, c.ICE.BundlePolicy)
	}
	switch c.ICE.RTCPMuxPolicy {
	case "negotiate", "require":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMux, c.ICE.RTCPMuxPolicy)
	}
	if c.Call.DisconnectGrace <= 0 {
		return ErrInvalidGrace
	}
	return nil
}
