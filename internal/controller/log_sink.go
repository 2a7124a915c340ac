package controller

import (
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/view"
)

// LogSink logs every view update and session change
type LogSink struct {
	logger *zap.Logger
}

var _ view.Sink = (*LogSink)(nil)

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("views")}
}

func (s *LogSink) Publish(u view.Update) {
	fields := []zap.Field{
		zap.String("purpose", string(u.Purpose)),
		zap.Stringer("state", u.State),
		zap.Uint64("gen", u.Gen),
	}

	switch v := u.View.(type) {
	case view.AdminView:
		fields = append(fields, zap.Int("users", len(v.Users)))
	case view.StudentView:
		fields = append(fields,
			zap.Bool("no_profile", v.NoProfile),
			zap.Bool("has_scheme", v.Grades.HasScheme()),
			zap.Float64("final_grade", v.Grades.FinalGrade))
	case view.LecturerView:
		fields = append(fields,
			zap.Int("bookings", len(v.Bookings)),
			zap.Int("students", len(v.AssignedStudents)))
	}

	if u.State == view.StateError {
		s.logger.Warn("View failed", append(fields, zap.Error(u.Err))...)
		return
	}
	s.logger.Info("View updated", fields...)
}

func (s *LogSink) SessionChanged(ev view.SessionEvent) {
	if !ev.SignedIn {
		s.logger.Info("👋 Signed out")
		return
	}
	s.logger.Info("🔐 Signed in",
		zap.String("uid", ev.UID),
		zap.String("role", string(ev.Role)),
		zap.Bool("synthesized", ev.Synthesized))
}
