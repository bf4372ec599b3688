// ABOUTME: Disabled document store used in demo mode
// ABOUTME: Every call fails with ErrDisabled instead of touching a backend

package docstore

import "context"

// Disabled is a Store that is switched off. Subscriptions report ErrDisabled
// through their error callback and never deliver snapshots.
type Disabled struct{}

var _ Store = Disabled{}

func (Disabled) Subscribe(_, _ string, _ func(Snapshot), onError func(error)) Unsubscribe {
	if onError != nil {
		go onError(ErrDisabled)
	}
	return func() {}
}

func (Disabled) Get(context.Context, string, string) (Snapshot, error) {
	return Snapshot{}, ErrDisabled
}

func (Disabled) Set(context.Context, string, string, interface{}) error {
	return ErrDisabled
}

func (Disabled) Update(context.Context, string, string, string, interface{}) error {
	return ErrDisabled
}

func (Disabled) Append(context.Context, string, string, string, ...interface{}) error {
	return ErrDisabled
}

func (Disabled) List(context.Context, string) ([]Snapshot, error) {
	return nil, ErrDisabled
}

func (Disabled) Delete(context.Context, string, string) error {
	return ErrDisabled
}

func (Disabled) Close() error {
	return nil
}
