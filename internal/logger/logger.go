// Package logger prints coloured, leveled console output.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	out     io.Writer = color.Output
	debug             = os.Getenv("APP_ENV") != "production"
	gray              = color.New(color.FgHiBlack)
	blue              = color.New(color.FgBlue)
	green             = color.New(color.FgGreen)
	yellow            = color.New(color.FgYellow)
	red               = color.New(color.FgRed)
	cyan              = color.New(color.FgCyan)
	magenta           = color.New(color.FgMagenta)
)

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetDebug toggles Debug output.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
}

func write(c *color.Color, prefix, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	gray.Fprintf(out, "[%s] ", time.Now().Format("15:04:05"))
	c.Fprintf(out, "%s%s\n", prefix, fmt.Sprintf(format, args...))
}

// Info logs general information.
func Info(format string, args ...interface{}) {
	write(blue, "", format, args...)
}

// Success logs a completed operation.
func Success(format string, args ...interface{}) {
	write(green, "✓ ", format, args...)
}

// Warning logs a recoverable problem.
func Warning(format string, args ...interface{}) {
	write(yellow, "⚠ ", format, args...)
}

// Error logs a failure.
func Error(format string, args ...interface{}) {
	write(red, "✗ ", format, args...)
}

// Debug logs only outside production.
func Debug(format string, args ...interface{}) {
	mu.Lock()
	enabled := debug
	mu.Unlock()
	if !enabled {
		return
	}
	write(cyan, "DEBUG: ", format, args...)
}

// Request logs one served HTTP request. The status colour follows its class.
func Request(method, path string, status int, duration time.Duration) {
	statusColor := green
	switch {
	case status >= 500:
		statusColor = red
	case status >= 400:
		statusColor = yellow
	case status >= 300:
		statusColor = cyan
	}

	mu.Lock()
	defer mu.Unlock()
	gray.Fprintf(out, "[%s] ", time.Now().Format("15:04:05"))
	magenta.Fprintf(out, "%-6s ", method)
	fmt.Fprintf(out, "%-40s ", path)
	statusColor.Fprintf(out, "[%d] ", status)
	gray.Fprintf(out, "(%s)\n", formatDuration(duration))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
