// Package state carries program wide state through the command context.
package state

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"critcss/common"
	"critcss/config"
)

type envKey struct{}

// LocalEnv is shared by command line hooks and subcommands. Configuration,
// report and logger are filled in by the Before hook.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// existing destination may be replaced
	Overwrite bool

	start      time.Time
	undoStdLog func()
}

// EnvFromContext returns environment put there by ContextWithEnv, panics if
// there is none.
func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	panic("localenv not found in context")
}

// ContextWithEnv returns ctx carrying fresh environment.
func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &LocalEnv{start: time.Now()})
}

// Elapsed is time since environment was created.
func (e *LocalEnv) Elapsed() time.Duration {
	return time.Since(e.start)
}

// Logger returns named program logger, never nil.
func (e *LocalEnv) Logger(name string) *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log.Named(name)
}

// StartLogging installs log as program logger and sends standard library
// log output to it.
func (e *LocalEnv) StartLogging(log *zap.Logger) {
	e.StopLogging()
	e.Log = log
	if log != nil {
		e.undoStdLog = zap.RedirectStdLog(log)
	}
}

// StopLogging flushes program logger and restores standard library log.
// Logger itself stays usable.
func (e *LocalEnv) StopLogging() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.undoStdLog != nil {
		e.undoStdLog()
		e.undoStdLog = nil
	}
}

// CheckDestination refuses to replace existing file unless Overwrite is set.
// Empty destination means standard output and is always fine.
func (e *LocalEnv) CheckDestination(dst string) error {
	if len(dst) == 0 || e.Overwrite {
		return nil
	}
	if _, err := os.Stat(dst); err == nil {
		return common.Errorf(common.KindInput, "output file already exists: %s", dst)
	}
	return nil
}
