package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/user"
)

// Logger writes structured logs with zap and reports them to Rollbar when a token is configured.
type Logger struct {
	zl      *zap.Logger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(conf *core.Config) (*Logger, error) {
	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
	}
	zconf.EncoderConfig.TimeKey = "timestamp"
	zconf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zl, err := zconf.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	zl = zl.With(zap.String("env", conf.Env), zap.String("build", conf.Build))

	l := &Logger{zl: zl, rollbar: conf.RollbarToken != "" && !conf.TestMode}
	if l.rollbar {
		rollbar.SetToken(conf.RollbarToken)
		rollbar.SetEnvironment(conf.Env)
		rollbar.SetServerHost(conf.Server.Host)
		rollbar.SetCodeVersion(conf.Build)
		rollbar.SetStackTracer(errors.StackTracer)
	}
	rollbar.SetEnabled(l.rollbar)
	return l, nil
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// Sync flushes buffered entries and waits for pending Rollbar items.
func (l *Logger) Sync() {
	_ = l.zl.Sync()
	if l.rollbar {
		rollbar.Wait()
	}
}

// parse splits args into zap fields and Rollbar arguments.
// expected fmt: error, map[string]interface{} extras, user.User
func (l *Logger) parse(msg string, args []interface{}) ([]zap.Field, []interface{}) {
	var usr *user.User
	fields := make([]zap.Field, 0, len(args))
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)

	for i, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if usr == nil { // only set one User
				u := v
				usr = &u
				fields = append(fields, zap.String("user_id", v.ID), zap.String("user_email", v.Email))
			}
			continue
		case error:
			fields = append(fields, zap.Error(v))
		case map[string]interface{}:
			fields = append(fields, zap.Any("extras", v))
		default:
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
		rbArgs = append(rbArgs, arg)
	}

	if l.rollbar {
		if usr != nil {
			rollbar.SetPerson(usr.ID, usr.Name, usr.Email)
		} else {
			rollbar.ClearPerson()
		}
	}
	return fields, rbArgs
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	fields, _ := l.parse(msg, args)
	l.zl.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	fields, rbArgs := l.parse(msg, args)
	l.zl.Info(msg, fields...)
	if l.rollbar {
		rollbar.Info(rbArgs...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	fields, rbArgs := l.parse(msg, args)
	l.zl.Warn(msg, fields...)
	if l.rollbar {
		rollbar.Warning(rbArgs...)
	}
}

func (l *Logger) Error(msg string, args ...interface{}) {
	fields, rbArgs := l.parse(msg, args)
	l.zl.Error(msg, fields...)
	if l.rollbar {
		rollbar.Error(rbArgs...)
	}
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	fields, rbArgs := l.parse(msg, args)
	if l.rollbar {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	l.zl.Fatal(msg, fields...)
}
