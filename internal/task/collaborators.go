package task

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Submitter queues follow-up tasks. *WorkerPool implements it.
type Submitter interface {
	Submit(user string, t Task, opts ...SubmitOption) (int64, error)
}

// Converter turns the ebook at in into the format implied by out's extension.
type Converter interface {
	Convert(ctx context.Context, in, out string) error
}

// Renderer writes a JPEG thumbnail of src, scaled to width, to dst.
type Renderer interface {
	Render(ctx context.Context, src, dst string, width int) error
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// Email is a message sent by the e-mail task. Attachment is an optional
// file path.
type Email struct {
	To         string
	Subject    string
	Text       string
	Attachment string
}

// CommandConverter runs an external converter as "<Path> [Args...] in out".
type CommandConverter struct {
	Path string
	Args []string
}

// Convert implements Converter. The process is killed when ctx is done.
func (c CommandConverter) Convert(ctx context.Context, in, out string) error {
	if c.Path == "" {
		return ErrConverterNotConfigured
	}

	args := make([]string, 0, len(c.Args)+2)
	args = append(args, c.Args...)
	args = append(args, in, out)

	cmd := exec.CommandContext(ctx, c.Path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("converter %s failed: %w: %s", c.Path, err, lastLine(output))
	}
	return nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
