package workerpool

// WorkerPool runs background work off the planner loop.
type WorkerPool interface {
	// Schedule hands task to a pooled worker goroutine,
	// this method would block if no worker goroutine is available.
	Schedule(task func())

	// ScheduleAlways never blocks: if no pooled worker is available a temp
	// goroutine is created for task execution.
	ScheduleAlways(task func())

	// Close waits for every worker goroutine to exit.
	Close()
}
