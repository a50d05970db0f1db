package api

import "github.com/phrazzld/shelfd/internal/taskstatus"

// TaskListResponse is returned by GET /api/tasks.
type TaskListResponse struct {
	Tasks []taskstatus.Record `json:"tasks"`
}

// SubmittedResponse acknowledges a queued task.
type SubmittedResponse struct {
	TaskID int64 `json:"task_id"`
}

// ConvertRequest is the body of POST /api/books/{id}/convert.
type ConvertRequest struct {
	From        string `json:"book_format_from" validate:"required,alphanum,max=10"`
	To          string `json:"book_format_to"   validate:"required,alphanum,max=10"`
	EreaderMail string `json:"ereader_mail"     validate:"omitempty,email"`
}

// TestMailRequest is the body of POST /api/admin/mail/test.
type TestMailRequest struct {
	To string `json:"to" validate:"required,email"`
}

// UploadRequest is the body of POST /api/uploads.
type UploadRequest struct {
	Title string `json:"title" validate:"required,max=512"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
