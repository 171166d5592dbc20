// Package format provides human-readable formatting for log lines and
// CLI output: byte counts, percentages, grouped numbers, and maintenance
// schedule descriptions.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bytes formats a byte count into human-readable form.
// Example: Bytes(1536) => "1.5 KB"
func Bytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	sizes := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), sizes[exp]) //nolint:gosec // G602: exp max is 4 (1024^6 > int64 max)
}

var printer = message.NewPrinter(language.English)

// Number formats a number with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Percentage formats a percentage value.
// Example: Percentage(45.678, 1) => "45.7%"
func Percentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

// CronDescription returns a human-readable description of a maintenance
// schedule: a standard five-field cron expression or a descriptor like
// "@every 15m" or "@hourly". Expressions it cannot describe are returned
// unchanged.
func CronDescription(expr string) string {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "@every ") {
		if d, err := time.ParseDuration(strings.TrimPrefix(expr, "@every ")); err == nil {
			return "Every " + durationWords(d)
		}
		return expr
	}

	switch expr {
	case "@hourly":
		return "Hourly"
	case "@daily", "@midnight":
		return "Daily at midnight"
	case "@weekly":
		return "Weekly"
	case "@monthly":
		return "Monthly"
	case "@yearly", "@annually":
		return "Yearly"
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}
	min, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	// Only the common hourly/daily shapes get prose; anything with
	// day-of-month, month, or day-of-week constraints falls through.
	if dom != "*" || month != "*" || dow != "*" {
		return expr
	}

	switch {
	case min == "*" && hour == "*":
		return "Every minute"
	case strings.HasPrefix(min, "*/") && hour == "*":
		if n, err := strconv.Atoi(min[2:]); err == nil && n > 0 {
			return fmt.Sprintf("Every %d minutes", n)
		}
	case isNumber(min) && hour == "*":
		m, _ := strconv.Atoi(min)
		return fmt.Sprintf("Hourly at :%02d", m)
	case isNumber(min) && strings.HasPrefix(hour, "*/"):
		if n, err := strconv.Atoi(hour[2:]); err == nil && n > 0 {
			m, _ := strconv.Atoi(min)
			return fmt.Sprintf("Every %d hours at :%02d", n, m)
		}
	case isNumber(min) && isNumber(hour):
		m, _ := strconv.Atoi(min)
		h, _ := strconv.Atoi(hour)
		return fmt.Sprintf("Daily at %02d:%02d", h, m)
	}

	return expr
}

// durationWords renders a duration as prose: "15 minutes", "1 hour 30
// minutes".
func durationWords(d time.Duration) string {
	if d < time.Minute {
		return plural(int(d.Seconds()), "second")
	}

	var parts []string
	if h := int(d.Hours()); h > 0 {
		parts = append(parts, plural(h, "hour"))
		d -= time.Duration(h) * time.Hour
	}
	if m := int(d.Minutes()); m > 0 {
		parts = append(parts, plural(m, "minute"))
		d -= time.Duration(m) * time.Minute
	}
	if s := int(d.Seconds()); s > 0 {
		parts = append(parts, plural(s, "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
