package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/phrazzld/shelfd/internal/api/shared"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/schedule"
	"github.com/phrazzld/shelfd/internal/service"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"golang.org/x/text/language"
)

// TaskHandler serves the task list and the endpoints that queue work.
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /api/tasks. Admins may pass hidden=true to include
// scheduled maintenance entries. The locale comes from lang or the
// Accept-Language header.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	includeHidden, _ := strconv.ParseBool(r.URL.Query().Get("hidden"))
	records := h.tasks.ListTasks(r.Context(), p, includeHidden, requestLocale(r))

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: records})
}

// CancelTask handles POST /api/tasks/{id}/cancel.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	if err := h.tasks.CancelTask(r.Context(), p, id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSchedule handles GET /api/admin/schedule.
func (h *TaskHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.tasks.Schedule(r.Context()))
}

// UpdateSchedule handles PUT /api/admin/schedule.
func (h *TaskHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	var settings schedule.Settings
	if !decodeAndValidate(w, r, &settings) {
		return
	}

	if err := h.tasks.UpdateSchedule(r.Context(), p, settings); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.tasks.Schedule(r.Context()))
}

// QueueMetadataBackup handles POST /api/admin/metadata-backup.
func (h *TaskHandler) QueueMetadataBackup(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.tasks.QueueMetadataBackup)
}

// RefreshThumbnails handles POST /api/admin/thumbnails/refresh.
func (h *TaskHandler) RefreshThumbnails(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.tasks.RefreshThumbnails)
}

// ClearThumbnails handles DELETE /api/admin/thumbnails.
func (h *TaskHandler) ClearThumbnails(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.tasks.ClearThumbnails)
}

// ConvertBook handles POST /api/books/{id}/convert.
func (h *TaskHandler) ConvertBook(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	bookID, err := pathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid book ID")
		return
	}

	var req ConvertRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.tasks.ConvertBook(r.Context(), p, service.ConvertRequest{
		BookID:      bookID,
		From:        req.From,
		To:          req.To,
		EreaderMail: req.EreaderMail,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("conversion queued",
		slog.Int64("task_id", id),
		slog.Int64("book_id", bookID),
		slog.String("from", req.From),
		slog.String("to", req.To))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmittedResponse{TaskID: id})
}

// SendTestEmail handles POST /api/admin/mail/test.
func (h *TaskHandler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	var req TestMailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.tasks.SendTestEmail(r.Context(), p, req.To)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmittedResponse{TaskID: id})
}

// RecordUpload handles POST /api/uploads. The entry is listed as finished
// right away.
func (h *TaskHandler) RecordUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	var req UploadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.tasks.RecordUpload(r.Context(), p, req.Title)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, SubmittedResponse{TaskID: id})
}

func (h *TaskHandler) submit(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, p auth.Principal) (int64, error),
) {
	p, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	id, err := fn(r.Context(), p)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmittedResponse{TaskID: id})
}

// requestLocale prefers the lang query parameter and falls back to the first
// Accept-Language tag.
func requestLocale(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}
