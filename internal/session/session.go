// Package session keeps the admin login state and one-shot flash messages
// behind an opaque cookie id.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an idle session lives.
const DefaultTTL = 24 * time.Hour

// Store is a session backend.
type Store interface {
	Create(ctx context.Context) (string, error)
	Authenticated(ctx context.Context, id string) (bool, error)
	SetAuthenticated(ctx context.Context, id string, ok bool) error
	// Flash returns the pending message and clears it.
	Flash(ctx context.Context, id string) (string, error)
	SetFlash(ctx context.Context, id, msg string) error
	Destroy(ctx context.Context, id string) error
}

// Data is what a session holds.
type Data struct {
	Authenticated bool   `json:"auth"`
	Flash         string `json:"flash,omitempty"`
}

// backend is the storage a session store needs. save refreshes the ttl.
type backend interface {
	load(ctx context.Context, id string) (Data, error)
	save(ctx context.Context, id string, d Data) error
	remove(ctx context.Context, id string) error
}

// ops implements Store on top of a backend.
type ops struct {
	b backend
}

func newID() string { return uuid.NewString() }

func (o ops) Create(ctx context.Context) (string, error) {
	id := newID()
	if err := o.b.save(ctx, id, Data{}); err != nil {
		return "", err
	}
	return id, nil
}

func (o ops) Authenticated(ctx context.Context, id string) (bool, error) {
	d, err := o.b.load(ctx, id)
	if err != nil {
		return false, err
	}
	return d.Authenticated, nil
}

func (o ops) SetAuthenticated(ctx context.Context, id string, ok bool) error {
	d, err := o.b.load(ctx, id)
	if err != nil {
		return err
	}
	d.Authenticated = ok
	return o.b.save(ctx, id, d)
}

func (o ops) Flash(ctx context.Context, id string) (string, error) {
	d, err := o.b.load(ctx, id)
	if err != nil {
		return "", err
	}
	if d.Flash == "" {
		return "", nil
	}
	msg := d.Flash
	d.Flash = ""
	return msg, o.b.save(ctx, id, d)
}

func (o ops) SetFlash(ctx context.Context, id, msg string) error {
	d, err := o.b.load(ctx, id)
	if err != nil {
		return err
	}
	d.Flash = msg
	return o.b.save(ctx, id, d)
}

func (o ops) Destroy(ctx context.Context, id string) error {
	return o.b.remove(ctx, id)
}
