package scheduler

import "github.com/charmbracelet/log"

// gocronLogger forwards gocron's internal messages to charm log, with info
// demoted to debug.
type gocronLogger struct {
	out *log.Logger
}

func newGocronLogger(out *log.Logger) *gocronLogger {
	return &gocronLogger{out: out.WithPrefix("scheduler")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.out.Debug(msg, args...) }

func (l *gocronLogger) Info(msg string, args ...any) { l.out.Debug(msg, args...) }

func (l *gocronLogger) Warn(msg string, args ...any) { l.out.Warn(msg, args...) }

func (l *gocronLogger) Error(msg string, args ...any) { l.out.Error(msg, args...) }
