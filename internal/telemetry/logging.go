package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelCritical — уровень выше ERROR, используется в YAML-конфиге логирования.
const LevelCritical = slog.LevelError + 4

// LogLevel определяет уровень логирования из переменной окружения.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	level, ok := ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel разбирает имя уровня. Поддерживает WARNING и CRITICAL.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	case "CRITICAL", "FATAL":
		return LevelCritical, true
	default:
		return slog.LevelInfo, false
	}
}

// LevelName возвращает имя уровня для вывода.
func LevelName(l slog.Level) string {
	if l >= LevelCritical {
		return "CRITICAL"
	}
	return l.String()
}

var (
	setupMu   sync.RWMutex
	activeCfg = &LogConfig{}
	baseH     slog.Handler
)

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — JSON формат для production
//   - "text" — человекочитаемый формат для разработки
//   - "console" — text с цветными уровнями (если вывод в терминал)
//
// Если задан LOG_CONFIG, уровни и формат берутся из YAML-файла.
func SetupLogger() *slog.Logger {
	cfg := &LogConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}

	if path := os.Getenv("LOG_CONFIG"); path != "" {
		loaded, err := LoadLogConfig(path)
		if err != nil {
			logger := SetupLoggerWith(cfg, os.Stdout)
			logger.Warn("failed to load log config, using env settings", "path", path, "error", err)
			return logger
		}
		cfg = loaded
	}

	return SetupLoggerWith(cfg, os.Stdout)
}

// SetupLoggerWith инициализирует глобальный логгер по конфигу и writer'у.
func SetupLoggerWith(cfg *LogConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		cfg = &LogConfig{}
	}

	root := cfg.RootLevel()
	opts := &slog.HandlerOptions{
		// Базовый handler пропускает всё от минимального уровня,
		// фильтрация по именам логгеров делается в levelFilter.
		Level:     cfg.MinLevel(),
		AddSource: root == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "console":
		handler = NewConsoleHandler(w, opts, UseColor(cfg.Color, w))
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	setupMu.Lock()
	activeCfg = cfg
	baseH = handler
	setupMu.Unlock()

	logger := slog.New(&levelFilter{next: handler, min: root})
	slog.SetDefault(logger)

	return logger
}

// Named возвращает логгер с именем name.
//
// Уровень берётся из самого специфичного префикса в конфиге:
// "ynab.client.http" → "ynab.client" → "ynab" → корневой уровень.
func Named(name string) *slog.Logger {
	setupMu.RLock()
	cfg, h := activeCfg, baseH
	setupMu.RUnlock()

	if h == nil {
		h = slog.Default().Handler()
	}

	return slog.New(&levelFilter{next: h, min: cfg.LevelFor(name)}).With("logger", name)
}

// levelFilter отсекает записи ниже min.
type levelFilter struct {
	next slog.Handler
	min  slog.Level
}

func (f *levelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.min && f.next.Enabled(ctx, level)
}

func (f *levelFilter) Handle(ctx context.Context, r slog.Record) error {
	return f.next.Handle(ctx, r)
}

func (f *levelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFilter{next: f.next.WithAttrs(attrs), min: f.min}
}

func (f *levelFilter) WithGroup(name string) slog.Handler {
	return &levelFilter{next: f.next.WithGroup(name), min: f.min}
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithJob возвращает логгер с добавленным именем sync job.
func WithJob(logger *slog.Logger, job string) *slog.Logger {
	return logger.With("job", job)
}
