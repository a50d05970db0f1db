// Package taskstatus renders worker pool snapshots into the localized rows of
// the task list, filtering them for the viewing user.
package taskstatus
