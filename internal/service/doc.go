// Package service holds the use cases behind the HTTP API. TaskService turns
// authenticated requests into task submissions, cancellations and schedule
// changes, and renders the task list for the caller. Permission checks live
// here so handlers only translate HTTP.
package service
