// Package storage defines the persistence contracts the arena service
// depends on: the account store and the match result sink.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound signals a lookup that matched no record.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken signals a registration against an existing name.
	ErrUsernameTaken = errors.New("username already taken")
)

// User is a durable account with its lifetime match statistics.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Wins         int
	Losses       int
	Draws        int
	Rating       int
	Level        string
	CreatedAt    time.Time
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user User) error
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	SetLevel(ctx context.Context, id, level string) error
}

// ResultSink receives finished match outcomes and updates durable
// statistics. For draws both ids are credited with a draw.
type ResultSink interface {
	RecordResult(ctx context.Context, winnerID, loserID string, draw bool) error
}
