package domain

import "context"

// StateRepository loads and persists the full reconciliation state.
// Persist writes the state and its events atomically: either both are
// stored or neither is.
type StateRepository interface {
	Load(ctx context.Context) (*State, error)
	Persist(ctx context.Context, state *State, events []DomainEvent) error
}
