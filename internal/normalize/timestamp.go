package normalize

import (
	"regexp"
	"time"

	"go.uber.org/zap"
)

// compactEventTime matches the platform's native event_time encoding,
// e.g. "20151212T121212Z".
var compactEventTime = regexp.MustCompile(`^\d{8}T\d{6}Z$`)

const compactEventTimeLayout = "20060102T150405Z"

// Fallback layouts for event times that arrive in other formats.
var genericLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseEventTime converts a raw event_time string into a canonical UTC
// instant. An empty or unparsable value falls back to the current
// wall-clock time; parsing never fails the caller.
func ParseEventTime(raw string, logger *zap.Logger) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}

	if compactEventTime.MatchString(raw) {
		if t, err := time.Parse(compactEventTimeLayout, raw); err == nil {
			return t.UTC()
		}
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	if logger != nil {
		logger.Warn("unparsable event_time, using current time",
			zap.String("event_time", raw))
	}
	return time.Now().UTC()
}
