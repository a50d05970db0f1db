package task

import (
	"context"
	"fmt"
)

type emailTask struct {
	mailer  Mailer
	msg     Email
	message string
}

func (t *emailTask) Kind() Kind        { return KindEmail }
func (t *emailTask) Name() string      { return "E-mail" }
func (t *emailTask) Cancellable() bool { return false }
func (t *emailTask) Message() string   { return t.message }

func (t *emailTask) Run(ctx context.Context, p Progress) error {
	if t.mailer == nil {
		return ErrMailNotConfigured
	}

	p.SetProgress(0.5)
	if err := t.mailer.Send(ctx, t.msg); err != nil {
		return fmt.Errorf("failed to send e-mail to %s: %w", t.msg.To, err)
	}
	return nil
}
