package loom

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the scheduler's structured logging facade, built on the
// logiface/stumpy facade.
type Logger = *logiface.Logger[*stumpy.Event]

// newDefaultLogger builds a stumpy-backed logger writing structured lines
// to the process's default writer (stderr).
func newDefaultLogger() Logger {
	return stumpy.L.New(stumpy.L.WithStumpy())
}

// logInfo and logErr attach the Run's correlation id to every line, so
// concurrent Runs sharing one process's log stream stay distinguishable.
func (s *scheduler) logInfo() *logiface.Builder[*stumpy.Event] {
	return s.logger.Info().Str(`run`, s.runID.String())
}

func (s *scheduler) logErr(err error) *logiface.Builder[*stumpy.Event] {
	return s.logger.Err().Str(`run`, s.runID.String()).Err(err)
}
