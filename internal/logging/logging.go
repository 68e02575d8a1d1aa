package logging

import (
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to w. Only errors are emitted unless
// verbose is set, so plugin stdout/stderr stay quiet for the scheduler.
// Every logger carries a run_id to correlate lines from one invocation.
func New(w io.Writer, verbose bool) *zap.SugaredLogger {
	level := zapcore.ErrorLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar().With("run_id", uuid.NewString())
}
