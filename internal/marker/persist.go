package marker

import "context"

// Persister is the save/load hook for markers. The default is Nop, which
// keeps markers session-only.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Nop is a Persister that stores nothing.
type Nop struct{}

func (Nop) Load(context.Context) (Snapshot, error) { return Snapshot{}, nil }

func (Nop) Save(context.Context, Snapshot) error { return nil }
