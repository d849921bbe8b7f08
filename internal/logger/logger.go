package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Config 日誌設定
type Config struct {
	Level        string `yaml:"level" envconfig:"LEVEL"`                 // debug / info / warn / error
	Format       string `yaml:"format" envconfig:"FORMAT"`               // text / json / logfmt
	Prefix       string `yaml:"prefix" envconfig:"PREFIX"`               // 例如 "[ledger]"
	TimeFormat   string `yaml:"time_format" envconfig:"TIME_FORMAT"`     // Go time layout
	ReportCaller bool   `yaml:"report_caller" envconfig:"REPORT_CALLER"` // 是否輸出呼叫位置
}

var formatters = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// New 建立以 charmbracelet/log 為 handler 的 slog.Logger
//
// w 為 nil 時輸出到 os.Stdout
func New(cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	formatter, ok := formatters[strings.ToLower(cfg.Format)]
	if !ok {
		formatter = log.TextFormatter
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05.000"
	}

	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           level,
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	if formatter == log.TextFormatter {
		l.SetStyles(styles())
	}
	return slog.New(l)
}

// Setup 建立 logger 並設為 slog 預設值
func Setup(cfg Config) *slog.Logger {
	l := New(cfg, os.Stdout)
	slog.SetDefault(l)
	return l
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	errorColor := lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	warnColor := lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}

	s.Levels[log.ErrorLevel] = lipgloss.NewStyle().SetString("ERROR").Bold(true).Foreground(errorColor)
	s.Levels[log.WarnLevel] = lipgloss.NewStyle().SetString("WARN").Bold(true).Foreground(warnColor)
	s.Keys["error"] = lipgloss.NewStyle().Foreground(errorColor)
	s.Values["error"] = lipgloss.NewStyle().Bold(true)
	s.Keys["batch_id"] = lipgloss.NewStyle().Faint(true)
	return s
}
