// Package api exposes the task queue over HTTP: the per-user task list,
// cancellation, the maintenance schedule and the endpoints that queue
// library jobs. Handlers decode and validate requests, call the task
// service and map its errors to status codes.
package api
