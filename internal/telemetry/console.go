package telemetry

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI-коды цветов для уровней.
const (
	colorReset   = "\033[0m"
	colorCyan    = "\033[36m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorBoldRed = "\033[1;31m"
)

var levelPrefix = []byte(slog.LevelKey + "=")

// NewConsoleHandler создаёт text handler с цветным уровнем.
//
// TextHandler экранирует управляющие символы в значениях, поэтому цвет
// добавляется в готовую строку записи, а не через ReplaceAttr.
func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	var o slog.HandlerOptions
	if opts != nil {
		o = *opts
	}

	prev := o.ReplaceAttr
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if prev != nil {
			a = prev(groups, a)
		}
		if len(groups) > 0 || a.Key != slog.LevelKey {
			return a
		}
		if level, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, LevelName(level))
		}
		return a
	}

	if color {
		w = &colorWriter{w: w}
	}
	return slog.NewTextHandler(w, &o)
}

// colorWriter раскрашивает значение level= в строке записи.
// TextHandler пишет каждую запись одним вызовом Write.
type colorWriter struct {
	w io.Writer
}

func (c *colorWriter) Write(p []byte) (int, error) {
	i := bytes.Index(p, levelPrefix)
	if i < 0 || (i > 0 && p[i-1] != ' ') {
		return c.w.Write(p)
	}
	start := i + len(levelPrefix)
	end := bytes.IndexAny(p[start:], " \n")
	if end < 0 {
		end = len(p) - start
	}
	end += start

	code := colorForName(string(p[start:end]))
	if code == "" {
		return c.w.Write(p)
	}

	out := make([]byte, 0, len(p)+len(code)+len(colorReset))
	out = append(out, p[:start]...)
	out = append(out, code...)
	out = append(out, p[start:end]...)
	out = append(out, colorReset...)
	out = append(out, p[end:]...)
	if _, err := c.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// colorForName возвращает цвет для имени уровня вида ERROR или ERROR+2.
func colorForName(name string) string {
	base, offset := name, ""
	if j := strings.IndexAny(name, "+-"); j > 0 {
		base, offset = name[:j], name[j:]
	}
	level, ok := ParseLevel(base)
	if !ok {
		return ""
	}
	if offset != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(name)); err == nil {
			level = l
		}
	}
	return levelColor(level)
}

// UseColor решает, раскрашивать ли вывод.
// auto — только если w является терминалом.
func UseColor(mode string, w io.Writer) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func levelColor(level slog.Level) string {
	switch {
	case level >= LevelCritical:
		return colorBoldRed
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}
