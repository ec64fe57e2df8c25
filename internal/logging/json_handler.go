package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// secretKeys are attribute keys whose values are masked in every output format.
var secretKeys = map[string]struct{}{
	"api_key":       {},
	"api_token":     {},
	"authorization": {},
	"x-api-key":     {},
}

const redactedValue = "[redacted]"

func redactValue(key string, v slog.Value) slog.Value {
	if _, ok := secretKeys[strings.ToLower(key)]; !ok {
		return v
	}
	if v.Kind() == slog.KindString && v.String() == "" {
		return v
	}
	return slog.StringValue(redactedValue)
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	attr.Value = redactValue(attr.Key, attr.Value)
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
