package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kevin-mind/nopo/pkg/logger"
)

// ParseSchedule converts a human-friendly schedule expression into the cron
// expression GitHub Actions expects. Supported forms:
//
//	"*/15 * * * *"            raw cron, passed through
//	"every 10 minutes"        interval (also "every 2 hours", "every 2h")
//	"daily"                   midnight UTC
//	"daily at 06:30"          fixed time
//	"weekly on monday"        midnight UTC on that weekday
//	"weekly on friday at 5pm" fixed time on that weekday
//	"monthly on 15"           midnight UTC on that day of month
//
// The minimum interval is 5 minutes, matching the shortest schedule the
// Actions runner honors.
func ParseSchedule(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("schedule expression cannot be empty")
	}

	if IsCronExpression(input) {
		return input, nil
	}

	tokens := strings.Fields(strings.ToLower(input))
	logger.Debug("parsing schedule expression", map[string]any{"input": input, "tokens": len(tokens)})

	var cron string
	var err error
	switch tokens[0] {
	case "every":
		cron, err = parseInterval(tokens)
	case "hourly":
		cron, err = "0 * * * *", nil
	case "daily":
		cron, err = parseDaily(tokens)
	case "weekly":
		cron, err = parseWeekly(tokens)
	case "monthly":
		cron, err = parseMonthly(tokens)
	default:
		err = fmt.Errorf("unsupported schedule %q, use a cron expression or 'every N minutes', 'daily', 'weekly on <weekday>', 'monthly on <day>'", input)
	}
	if err != nil {
		return "", err
	}

	logger.Debug("parsed schedule to cron", map[string]any{"input": input, "cron": cron})
	return cron, nil
}

// IsCronExpression reports whether the input already looks like a 5-field
// cron expression.
func IsCronExpression(input string) bool {
	fields := strings.Fields(input)
	if len(fields) != 5 {
		return false
	}
	fieldPattern := regexp.MustCompile(`^[\d*,/-]+$`)
	for _, f := range fields {
		if !fieldPattern.MatchString(f) {
			return false
		}
	}
	return true
}

var shortDurationPattern = regexp.MustCompile(`^(\d+)([mhd])$`)

// parseInterval handles "every N minutes|hours|days" and "every Nm|Nh|Nd".
func parseInterval(tokens []string) (string, error) {
	if len(tokens) < 2 {
		return "", fmt.Errorf("invalid interval, expected 'every N unit' or 'every Nunit'")
	}

	var interval int
	var unit string

	if matches := shortDurationPattern.FindStringSubmatch(tokens[1]); matches != nil {
		interval, _ = strconv.Atoi(matches[1])
		switch matches[2] {
		case "m":
			unit = "minutes"
		case "h":
			unit = "hours"
		case "d":
			unit = "days"
		}
	} else {
		if len(tokens) < 3 {
			return "", fmt.Errorf("invalid interval, expected 'every N unit' (e.g. 'every 30 minutes')")
		}
		n, err := strconv.Atoi(tokens[1])
		if err != nil || n < 1 {
			return "", fmt.Errorf("invalid interval %q, must be a positive integer", tokens[1])
		}
		interval = n
		unit = strings.TrimSuffix(tokens[2], "s") + "s" // normalize to plural
	}

	totalMinutes := 0
	switch unit {
	case "minutes":
		totalMinutes = interval
	case "hours":
		totalMinutes = interval * 60
	case "days":
		totalMinutes = interval * 24 * 60
	default:
		return "", fmt.Errorf("unsupported interval unit %q, use minutes, hours, or days", unit)
	}
	if totalMinutes < 5 {
		return "", fmt.Errorf("minimum schedule interval is 5 minutes, got %d minute(s)", totalMinutes)
	}

	switch unit {
	case "minutes":
		return fmt.Sprintf("*/%d * * * *", interval), nil
	case "hours":
		if interval == 1 {
			return "0 * * * *", nil
		}
		return fmt.Sprintf("0 */%d * * *", interval), nil
	default: // days
		if interval == 1 {
			return "0 0 * * *", nil
		}
		return fmt.Sprintf("0 0 */%d * *", interval), nil
	}
}

func parseDaily(tokens []string) (string, error) {
	if len(tokens) == 1 {
		return "0 0 * * *", nil
	}
	hour, minute, err := extractTime(tokens[1:])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func parseWeekly(tokens []string) (string, error) {
	if len(tokens) < 3 || tokens[1] != "on" {
		return "", fmt.Errorf("weekly schedule requires 'on <weekday>'")
	}
	weekday, ok := weekdayNumber(tokens[2])
	if !ok {
		return "", fmt.Errorf("invalid weekday %q", tokens[2])
	}
	if len(tokens) == 3 {
		return fmt.Sprintf("0 0 * * %d", weekday), nil
	}
	hour, minute, err := extractTime(tokens[3:])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * %d", minute, hour, weekday), nil
}

func parseMonthly(tokens []string) (string, error) {
	if len(tokens) < 3 || tokens[1] != "on" {
		return "", fmt.Errorf("monthly schedule requires 'on <day>'")
	}
	day, err := strconv.Atoi(tokens[2])
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("invalid day of month %q, must be 1-31", tokens[2])
	}
	if len(tokens) == 3 {
		return fmt.Sprintf("0 0 %d * *", day), nil
	}
	hour, minute, err := extractTime(tokens[3:])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %d * *", minute, hour, day), nil
}

// extractTime parses an optional "at" keyword followed by a time token:
// "06:30", "17", "5pm", "9:15am", "midnight", or "noon". Times are UTC.
func extractTime(tokens []string) (hour, minute int, err error) {
	if len(tokens) > 0 && tokens[0] == "at" {
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return 0, 0, fmt.Errorf("expected time after 'at'")
	}
	return parseTimeOfDay(tokens[0])
}

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)?$`)

func parseTimeOfDay(s string) (hour, minute int, err error) {
	switch s {
	case "midnight":
		return 0, 0, nil
	case "noon":
		return 12, 0, nil
	}

	matches := clockPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, 0, fmt.Errorf("invalid time %q, use HH:MM, Ham/Hpm, midnight, or noon", s)
	}

	hour, _ = strconv.Atoi(matches[1])
	if matches[2] != "" {
		minute, _ = strconv.Atoi(matches[2])
	}

	switch matches[3] {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("invalid time %q", s)
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("invalid time %q", s)
		}
		if hour != 12 {
			hour += 12
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return hour, minute, nil
}

// weekdayNumber maps a weekday name or abbreviation to its cron number.
func weekdayNumber(name string) (int, bool) {
	switch name {
	case "sunday", "sun":
		return 0, true
	case "monday", "mon":
		return 1, true
	case "tuesday", "tue", "tues":
		return 2, true
	case "wednesday", "wed":
		return 3, true
	case "thursday", "thu", "thurs":
		return 4, true
	case "friday", "fri":
		return 5, true
	case "saturday", "sat":
		return 6, true
	default:
		return 0, false
	}
}
