package domain

import "errors"

var (
	// ErrInvalidTransition is returned when a (state, event) pair is absent
	// from the lifecycle transition table
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrTerminalState is returned when a transition is attempted out of a
	// terminal state
	ErrTerminalState = errors.New("state is terminal")

	// ErrInvalidEvent is returned when an incoming movement event fails
	// boundary validation
	ErrInvalidEvent = errors.New("invalid movement event")

	// ErrInvalidSignalType is returned when a signal names an unknown type
	ErrInvalidSignalType = errors.New("invalid signal type")

	// ErrContactNotFound is returned when a contact is not found
	ErrContactNotFound = errors.New("contact not found")

	// ErrContactAlreadyExists is returned when creating a contact that exists
	ErrContactAlreadyExists = errors.New("contact already exists")

	// ErrCompanyNotFound is returned when a company is not found
	ErrCompanyNotFound = errors.New("company not found")

	// ErrContactLocked is returned when a locked contact is asked to move
	ErrContactLocked = errors.New("contact locked")

	// ErrVersionConflict is returned when an optimistic-concurrency write
	// loses the race against another writer
	ErrVersionConflict = errors.New("contact version conflict")
)
