// Package task manages background job queuing, processing, and lifecycle.
//
// A WorkerPool runs submitted tasks with bounded concurrency in strict FIFO
// order and keeps a short history of finished entries for status reporting.
// Cancellation is cooperative: a cancellable task receives a context that is
// cancelled on request and is expected to return at its next safe point. A
// task that never checks its context runs to completion.
//
// The variants in this package (conversion, metadata backup, thumbnails,
// e-mail and maintenance tasks) talk to the library through small
// collaborator interfaces so they can be exercised with in-memory fakes.
package task
