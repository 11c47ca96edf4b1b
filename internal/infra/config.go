package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"mocktrading/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		WSURL           string `yaml:"ws_url"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
		HandshakeTimeMS int    `yaml:"handshake_timeout_ms"`
	} `yaml:"server"`

	Engine struct {
		InboxSize int `yaml:"inbox_size"`
	} `yaml:"engine"`

	Aggregation struct {
		// LegacySideTiebreak collapses opposite-side orders at one price onto the
		// side of the last order scanned.
		LegacySideTiebreak bool `yaml:"legacy_side_tiebreak"`
	} `yaml:"aggregation"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Debug struct {
		PprofAddr string `yaml:"pprof_addr"`
	} `yaml:"debug"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig parses YAML bytes, applies defaults and env overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ReadTimeoutSec == 0 {
		cfg.Server.ReadTimeoutSec = 60
	}
	if cfg.Server.HandshakeTimeMS == 0 {
		cfg.Server.HandshakeTimeMS = 10000
	}
	if cfg.Engine.InboxSize == 0 {
		cfg.Engine.InboxSize = 1024
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "logs/app.log"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Server.WSURL, "ws://") && !strings.HasPrefix(c.Server.WSURL, "wss://") {
		return &domain.ConfigError{Field: "server.ws_url", Err: fmt.Errorf("invalid websocket URL %q", c.Server.WSURL)}
	}
	if c.Server.ReadTimeoutSec < 0 {
		return &domain.ConfigError{Field: "server.read_timeout_sec", Err: errors.New("must not be negative")}
	}
	if c.Engine.InboxSize < 0 {
		return &domain.ConfigError{Field: "engine.inbox_size", Err: errors.New("must not be negative")}
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return &domain.ConfigError{Field: "journal.path", Err: errors.New("required when journal is enabled")}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("MOCKTRADING_WS_URL"); url != "" {
		cfg.Server.WSURL = url
	}
	if level := os.Getenv("MOCKTRADING_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if path := os.Getenv("MOCKTRADING_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
		cfg.Journal.Enabled = true
	}
}
