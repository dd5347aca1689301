// Package contact holds the state of the portfolio contact form and submits it
// to an outbound email relay.
//
// A submission goes Idle -> Submitting -> Succeeded or Failed -> Idle. Success
// clears the form; failure keeps what the visitor typed so they can press send
// again. Nothing is retried automatically.
package contact

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrSubmissionFailed covers every way the relay call can fail.
	ErrSubmissionFailed = errors.New("contact: submission failed")

	// ErrUnmounted is returned when the form went away before the send resolved.
	ErrUnmounted = errors.New("contact: form unmounted")
)

const (
	SuccessMessage = "Message sent successfully! 🎉"
	FailureMessage = "Failed to send message. Please try again."
)

// Payload is the template data handed to the relay.
type Payload struct {
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// Sender delivers one payload to the relay. Any error means the submission failed.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

type SenderFunc func(ctx context.Context, p Payload) error

func (fn SenderFunc) Send(ctx context.Context, p Payload) error { return fn(ctx, p) }

type Kind int

const (
	Success Kind = iota
	Failure
)

func (k Kind) String() string {
	if k == Success {
		return "success"
	}
	return "failure"
}

type Notification struct {
	Kind    Kind
	Message string
}

// Notifier shows a notification to the visitor.
type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (fn NotifierFunc) Notify(n Notification) { fn(n) }

type Submitter struct {
	sender Sender
	logger *zap.Logger
}

func NewSubmitter(sender Sender, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{sender: sender, logger: logger}
}

// Submit sends the current field values and applies the outcome to form.
//
// The send is not cancelled when ctx is; only its values are kept. If the
// form was unmounted meanwhile, the outcome is dropped and no notification
// is shown. Concurrent calls on the same form are independent and the last
// one to resolve decides the final state.
func (s *Submitter) Submit(ctx context.Context, form *Form, notifier Notifier) error {
	fields := form.begin()

	err := s.sender.Send(context.WithoutCancel(ctx), fields.Payload())
	if !form.resolve(err == nil) {
		s.logger.Debug("dropping contact result for unmounted form", zap.Error(err))
		return ErrUnmounted
	}

	if err != nil {
		s.logger.Warn("contact submission failed",
			zap.String("subject", fields.Subject),
			zap.Error(err))
		notifier.Notify(Notification{Kind: Failure, Message: FailureMessage})
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	s.logger.Info("contact submission sent", zap.String("subject", fields.Subject))
	notifier.Notify(Notification{Kind: Success, Message: SuccessMessage})
	return nil
}
