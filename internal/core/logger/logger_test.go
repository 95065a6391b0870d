package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"go-gin-gorm-cms/internal/core/config"
)

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := New(Options{Level: "warn", JSON: true, Out: zapcore.AddSync(&buf)})
	l.Info("hidden")
	l.Warn("shown")
	cleanup()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestNew_RotatesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	opt := FromConfig(config.Log{Level: "info", JSON: true, File: file, MaxSizeMB: 1})
	opt.Out = zapcore.AddSync(&bytes.Buffer{})
	l, cleanup := New(opt)
	l.Info("to file")
	cleanup()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}

func TestToWriterAndRedirect(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := New(Options{Level: "debug", JSON: true, Out: zapcore.AddSync(&buf)})
	defer cleanup()

	_, _ = ToWriter(l, zapcore.WarnLevel).Write([]byte("slow sql 250ms\n"))
	_, _ = ToWriter(l, zapcore.WarnLevel).Write([]byte("   \n"))

	undo := RedirectStdLog(l, zapcore.InfoLevel)
	log.Print("from std log")
	undo()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "slow sql 250ms")
	assert.Contains(t, lines[0], `"level":"warn"`)
	assert.Contains(t, lines[1], "from std log")
}
