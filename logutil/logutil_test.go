package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, err := ParseLevel(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestTrace(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(NewLogger(&buf, LevelTrace))
	Trace("skipping builtin", "name", "__va_list_tag")

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "name=__va_list_tag")
	assert.Contains(t, out, "source=logutil_test.go:")

	buf.Reset()
	slog.SetDefault(NewLogger(&buf, slog.LevelInfo))
	Trace("hidden")
	assert.Empty(t, buf.String())
}
