package notifier

import (
	"context"
	"errors"
)

// Notifier delivers a short alert. Implementations must honor ctx and
// return instead of blocking forever.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Noop discards every alert.
type Noop struct{}

func (Noop) Notify(context.Context, string, string) error { return nil }

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns the single notifier, a Multi, or Noop when none are given.
func Combine(ns ...Notifier) Notifier {
	var active Multi
	for _, n := range ns {
		if n != nil {
			active = append(active, n)
		}
	}
	switch len(active) {
	case 0:
		return Noop{}
	case 1:
		return active[0]
	}
	return active
}
