package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogConfig — YAML-конфигурация логирования.
//
//	level: INFO
//	format: console
//	color: auto
//	loggers:
//	  ynab.client: DEBUG
//	  api.http: WARNING
type LogConfig struct {
	// Level — корневой уровень.
	Level string `yaml:"level"`

	// Format — json | text | console.
	Format string `yaml:"format"`

	// Color — auto | always | never. Только для console.
	Color string `yaml:"color"`

	// Loggers — уровни по именам логгеров.
	Loggers map[string]string `yaml:"loggers"`
}

// LoadLogConfig читает конфиг логирования из файла.
func LoadLogConfig(path string) (*LogConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log config: %w", err)
	}
	return ParseLogConfig(data)
}

// ParseLogConfig разбирает YAML и проверяет имена уровней.
func ParseLogConfig(data []byte) (*LogConfig, error) {
	var cfg LogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse log config: %w", err)
	}

	if cfg.Level != "" {
		if _, ok := ParseLevel(cfg.Level); !ok {
			return nil, fmt.Errorf("unknown root level %q", cfg.Level)
		}
	}
	for name, level := range cfg.Loggers {
		if _, ok := ParseLevel(level); !ok {
			return nil, fmt.Errorf("unknown level %q for logger %q", level, name)
		}
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	switch strings.ToLower(cfg.Color) {
	case "", "auto", "always", "never":
	default:
		return nil, fmt.Errorf("unknown color mode %q", cfg.Color)
	}

	return &cfg, nil
}

// RootLevel возвращает корневой уровень (INFO по умолчанию).
func (c *LogConfig) RootLevel() slog.Level {
	if c == nil {
		return slog.LevelInfo
	}
	level, _ := ParseLevel(c.Level)
	return level
}

// LevelFor возвращает уровень для логгера с иерархическим именем.
func (c *LogConfig) LevelFor(name string) slog.Level {
	if c == nil {
		return slog.LevelInfo
	}
	for key := name; key != ""; {
		if raw, ok := c.Loggers[key]; ok {
			level, _ := ParseLevel(raw)
			return level
		}
		dot := strings.LastIndex(key, ".")
		if dot < 0 {
			break
		}
		key = key[:dot]
	}
	return c.RootLevel()
}

// MinLevel возвращает минимальный уровень среди корня и всех логгеров.
func (c *LogConfig) MinLevel() slog.Level {
	lowest := c.RootLevel()
	if c == nil {
		return lowest
	}
	for _, raw := range c.Loggers {
		if level, _ := ParseLevel(raw); level < lowest {
			lowest = level
		}
	}
	return lowest
}
