package taskstatus

import (
	"fmt"
	"html"
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/phrazzld/shelfd/internal/task"
)

// Viewer is the user a task list is rendered for.
type Viewer struct {
	Name  string
	Admin bool

	// IncludeHidden adds entries submitted as hidden.
	IncludeHidden bool
}

// Record is one rendered task-list row.
type Record struct {
	TaskID      int64  `json:"task_id"`
	Status      int    `json:"stat"`
	Label       string `json:"status"`
	Message     string `json:"taskMessage"`
	Progress    string `json:"progress"`
	User        string `json:"user"`
	StartTime   string `json:"starttime,omitempty"`
	Runtime     string `json:"runtime,omitempty"`
	Cancellable bool   `json:"is_cancellable"`
}

// Render projects entries into the rows visible to viewer. Non-admins only see
// their own entries; admins see everything.
func Render(entries []task.EntrySnapshot, viewer Viewer, trans ut.Translator, now time.Time) []Record {
	records := make([]Record, 0, len(entries))

	for _, e := range entries {
		if !viewer.Admin && e.User != viewer.Name {
			continue
		}
		if e.Hidden && !viewer.IncludeHidden {
			continue
		}

		rec := Record{
			TaskID:      e.ID,
			Status:      int(e.Status),
			Label:       StatusLabel(trans, e.Status),
			Message:     e.Name,
			Progress:    fmt.Sprintf("%d %%", int(e.Progress*100)),
			User:        html.EscapeString(e.User),
			Cancellable: e.Cancellable,
		}
		if e.Message != "" {
			rec.Message = e.Name + ": " + e.Message
		}
		if e.User == "" {
			rec.User = translate(trans, keySystem, "System")
		}
		if !e.StartTime.IsZero() {
			start := e.StartTime.In(now.Location())
			rec.StartTime = trans.FmtDateShort(start) + " " + trans.FmtTimeShort(start)
			rec.Runtime = FormatRuntime(trans, e.Runtime(now))
		}

		records = append(records, rec)
	}

	return records
}

// StatusLabel returns the localized status name.
func StatusLabel(trans ut.Translator, s task.Status) string {
	switch s {
	case task.StatusWaiting:
		return translate(trans, keyWaiting, "Waiting")
	case task.StatusFail:
		return translate(trans, keyFailed, "Failed")
	case task.StatusStarted:
		return translate(trans, keyStarted, "Started")
	case task.StatusFinishSuccess:
		return translate(trans, keyFinished, "Finished")
	case task.StatusEnded:
		return translate(trans, keyEnded, "Ended")
	case task.StatusCancelled:
		return translate(trans, keyCancelled, "Cancelled")
	default:
		return translate(trans, keyUnknown, "Unknown Status")
	}
}

// FormatRuntime renders d as "[N days, ]h:mm:sss", "m:sss" or "ss"; minutes
// and bare seconds are padded to two characters.
func FormatRuntime(trans ut.Translator, d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	rest := total % 86400
	hours, minutes, seconds := rest/3600, (rest%3600)/60, rest%60

	out := ""
	if days > 0 {
		n := strconv.FormatInt(days, 10)
		label, err := trans.C(keyDays, float64(days), 0, n)
		if err != nil {
			label = n + " days"
		}
		out = label + ", "
	}

	switch {
	case hours > 0:
		out += fmt.Sprintf("%d:%02d:%02ds", hours, minutes, seconds)
	case minutes > 0:
		out += fmt.Sprintf("%2d:%02ds", minutes, seconds)
	default:
		out += fmt.Sprintf("%2ds", seconds)
	}
	return out
}

func translate(trans ut.Translator, key, fallback string) string {
	s, err := trans.T(key)
	if err != nil || s == "" {
		return fallback
	}
	return s
}
