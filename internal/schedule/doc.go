// Package schedule runs the daily maintenance window. At the configured start
// hour it submits a batch of maintenance tasks to the worker pool, and at the
// end of the window it cancels whatever scheduled, cancellable work is still
// waiting or running.
package schedule
