package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/intigym/backoffice/core/user"
)

func newObservedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{zl: zap.New(core)}, logs
}

func TestLoggerFields(t *testing.T) {
	l, logs := newObservedLogger()
	usr := user.User{ID: "u1", Name: "Rosa", Email: "rosa@intigym.pe"}

	l.Error("renewing membership", errors.New("boom"), map[string]interface{}{"member": "m1"}, usr, usr, 42)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		e := entries[0]
		assert.Equal(t, "renewing membership", e.Message)
		ctx := e.ContextMap()
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, map[string]interface{}{"member": "m1"}, ctx["extras"])
		assert.Equal(t, "u1", ctx["user_id"])
		assert.Equal(t, "rosa@intigym.pe", ctx["user_email"])
		assert.EqualValues(t, 42, ctx["arg4"])
	}
}

func TestLoggerLevels(t *testing.T) {
	l, logs := newObservedLogger()
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	levels := make([]string, 0, 4)
	for _, e := range logs.All() {
		levels = append(levels, e.Level.String())
	}
	assert.Equal(t, []string{"debug", "info", "warn", "error"}, levels)
}
