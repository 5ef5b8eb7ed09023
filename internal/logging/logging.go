// Package logging builds the charmbracelet/log loggers every pathfinder
// binary and package shares, replacing the teacher's log/slog plumbing
// (clientOptions.Logger) with one consistent styling story.
//
// Grounded on TypeTerrors-go.model-orchestrator/internal/logging,
// adopted almost verbatim in technique: a Config-driven constructor plus
// a FromEnv reading this project's own env var names.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	log "github.com/charmbracelet/log"
)

// Config describes how a logger should behave.
type Config struct {
	Output    io.Writer
	Level     log.Level
	Prefix    string
	UseColors bool
}

// New builds a *log.Logger with consistent styling across binaries.
func New(cfg Config) *log.Logger {
	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}
	logger := log.NewWithOptions(writer, log.Options{
		Level:           cfg.Level,
		Prefix:          renderPrefix(cfg.Prefix),
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if !cfg.UseColors {
		applyNoColorStyles(logger)
	}
	return logger
}

// FromEnv derives logging preferences from PATHFINDER_LOG_LEVEL and
// PATHFINDER_LOG_NO_COLOR.
func FromEnv(prefix string) *log.Logger {
	level := ParseLevel(strings.TrimSpace(os.Getenv("PATHFINDER_LOG_LEVEL")))
	useColors := true
	if value := strings.TrimSpace(os.Getenv("PATHFINDER_LOG_NO_COLOR")); value != "" {
		useColors = !strings.EqualFold(value, "true")
	}
	return New(Config{
		Output:    os.Stdout,
		Level:     level,
		Prefix:    prefix,
		UseColors: useColors,
	})
}

// ParseLevel maps a case-insensitive level name to a log.Level,
// defaulting to InfoLevel for anything unrecognized.
func ParseLevel(value string) log.Level {
	switch strings.ToLower(value) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

func renderPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	return prefix + " "
}

func applyNoColorStyles(logger *log.Logger) {
	styles := log.DefaultStyles()
	styles.Timestamp = baseStyle()
	styles.Caller = baseStyle()
	styles.Prefix = baseStyle()
	styles.Message = baseStyle()
	styles.Key = baseStyle()
	styles.Value = baseStyle()
	styles.Separator = baseStyle()

	for level := range styles.Levels {
		styles.Levels[level] = lipgloss.NewStyle().SetString(strings.ToUpper(level.String()))
	}
	styles.Keys = map[string]lipgloss.Style{}
	styles.Values = map[string]lipgloss.Style{}

	logger.SetStyles(styles)
}

func baseStyle() lipgloss.Style {
	return lipgloss.NewStyle()
}
