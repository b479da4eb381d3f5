// Package logging implements the component-facing log_span() handle with
// logrus, mirroring the teacher's internal/log package — a narrow Logger
// interface wrapping a *logrus.Entry rather than exposing logrus directly.
package logging

import (
	"github.com/sirupsen/logrus"

	"firestige.xyz/visionflow/pkg/component"
)

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Span adapts a *logrus.Entry to component.LogSpan.
type Span struct {
	entry *logrus.Entry
}

var _ component.LogSpan = (*Span)(nil)

// New returns a root span carrying run_id/component/prefix fields, the
// handle Context.LogSpan() returns to a running component.
func New(runID, componentName, prefix string) *Span {
	return &Span{entry: logrus.NewEntry(base).WithFields(logrus.Fields{
		"run_id":    runID,
		"component": componentName,
		"prefix":    prefix,
	})}
}

func (s *Span) Debug(args ...any)                 { s.entry.Debug(args...) }
func (s *Span) Debugf(format string, args ...any)  { s.entry.Debugf(format, args...) }
func (s *Span) Info(args ...any)                  { s.entry.Info(args...) }
func (s *Span) Infof(format string, args ...any)   { s.entry.Infof(format, args...) }
func (s *Span) Warn(args ...any)                  { s.entry.Warn(args...) }
func (s *Span) Warnf(format string, args ...any)   { s.entry.Warnf(format, args...) }
func (s *Span) Error(args ...any)                 { s.entry.Error(args...) }
func (s *Span) Errorf(format string, args ...any)  { s.entry.Errorf(format, args...) }

func (s *Span) WithField(key string, value any) component.LogSpan {
	return &Span{entry: s.entry.WithField(key, value)}
}

func (s *Span) WithFields(fields map[string]any) component.LogSpan {
	return &Span{entry: s.entry.WithFields(logrus.Fields(fields))}
}

func (s *Span) WithError(err error) component.LogSpan {
	return &Span{entry: s.entry.WithError(err)}
}
