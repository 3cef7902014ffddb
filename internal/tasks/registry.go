package tasks

import (
	"context"
)

// ScheduledTaskFunc is the signature every scheduled task implements. The
// scheduler's context must be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the full task registry. Map keys match the
// scheduler task names in the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	tasks["flush_lake"] = newFlushLakeTask(deps)
	tasks["load_raw"] = newLoadRawTask(deps)
	tasks["transform_marts"] = newTransformMartsTask(deps)
	tasks["detect_objects"] = newDetectObjectsTask(deps)

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
