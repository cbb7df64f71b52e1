package team

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a team does not exist.
var ErrNotFound = errors.New("team not found")

// Store defines the operations for reading and maintaining team records.
type Store interface {
	UpsertTeam(ctx context.Context, t *Team) error
	GetTeam(ctx context.Context, id string) (*Team, error)
	ListTeams(ctx context.Context) ([]*Team, error)
	ListByDivision(ctx context.Context, division string) ([]*Team, error)
	DeleteTeam(ctx context.Context, id string) error
}
