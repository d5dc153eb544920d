package formatter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var placeholderMatcher = regexp.MustCompile(`%[\w.]+`)

// CustomFieldFormatter renders entries from a template such as
// "%time %level %message source=%source". Placeholders for fields the entry
// does not carry render as nothing.
type CustomFieldFormatter struct {
	LogFormat string
}

func (f *CustomFieldFormatter) getFieldValue(entry *logrus.Entry, field string) (string, bool) {
	switch strings.ToLower(field) {
	case "level":
		return entry.Level.String(), true
	case "time":
		return entry.Time.Format(time.RFC3339Nano), true
	case "message":
		return entry.Message, true
	default:
		val, ok := entry.Data[field]
		if !ok {
			return "", false
		}

		switch v := val.(type) {
		case string:
			return v, true
		case error:
			return v.Error(), true
		default:
			return fmt.Sprint(v), true
		}
	}
}

func (f *CustomFieldFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	replaced := placeholderMatcher.ReplaceAllStringFunc(f.LogFormat, func(match string) string {
		value, _ := f.getFieldValue(entry, strings.TrimPrefix(match, "%"))
		return value
	})

	return []byte(strings.TrimSpace(replaced) + "\n"), nil
}
