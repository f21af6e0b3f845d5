package logger

import "go.uber.org/zap"

// Subsystem tags used with FieldSubsystem. Kept as plain strings rather than
// an enum type so new subsystems never require a package change here.
const (
	SubsystemKernel    = "kernel"
	SubsystemScheduler = "scheduler"
	SubsystemPubSub    = "pubsub"
	SubsystemDBQueue   = "db_queue"
	SubsystemNetSvc    = "netsvc"
	SubsystemAPIServer = "apiserver"
)

// Subsystem-aware logging helpers.
// These log with the subsystem as a structured field, not interpolated into
// the message, so logs stay queryable by subsystem.
//
// Usage:
//
//	logger.SchedulerInfow("job due", "job_id", id)

// SchedulerInfow logs an info message tagged with the scheduler subsystem.
func SchedulerInfow(msg string, keysAndValues ...interface{}) {
	withSubsystem(SubsystemScheduler).Infow(msg, keysAndValues...)
}

// SchedulerDebugw logs a debug message tagged with the scheduler subsystem.
func SchedulerDebugw(msg string, keysAndValues ...interface{}) {
	withSubsystem(SubsystemScheduler).Debugw(msg, keysAndValues...)
}

// DBQueueInfow logs an info message tagged with the db_queue subsystem.
func DBQueueInfow(msg string, keysAndValues ...interface{}) {
	withSubsystem(SubsystemDBQueue).Infow(msg, keysAndValues...)
}

// DBQueueDebugw logs a debug message tagged with the db_queue subsystem.
func DBQueueDebugw(msg string, keysAndValues ...interface{}) {
	withSubsystem(SubsystemDBQueue).Debugw(msg, keysAndValues...)
}

// KernelOpenInfow logs graceful-startup progress tagged with the kernel subsystem.
func KernelOpenInfow(msg string, keysAndValues ...interface{}) {
	withSubsystem(SubsystemKernel).Infow(msg, keysAndValues...)
}

// KernelCloseInfow logs graceful-shutdown progress tagged with the kernel subsystem.
func KernelCloseInfow(msg string, keysAndValues ...interface{}) {
	withSubsystem(SubsystemKernel).Infow(msg, keysAndValues...)
}

func withSubsystem(subsystem string) *zap.SugaredLogger {
	if Logger == nil {
		return zap.NewNop().Sugar()
	}
	return Logger.With(FieldSubsystem, subsystem)
}

// WithSubsystem returns a logger annotated with the given subsystem tag.
func WithSubsystem(subsystem string) *zap.SugaredLogger {
	return withSubsystem(subsystem)
}
