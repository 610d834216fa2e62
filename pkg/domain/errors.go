package domain

import "errors"

// ErrNotFound is returned when a referenced actor, listing, or application
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrSessionNotFound is returned when no session exists for a session key.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionActive is returned by Begin when a session already exists for
// the (actor, chat) pair.
var ErrSessionActive = errors.New("session already active")

// ErrNoCapacity is returned when a slot reservation would take a listing's
// remaining slots below zero.
var ErrNoCapacity = errors.New("no slots left")

// ErrStateConflict is returned when a conditional update finds the entity in
// a state the transition does not apply to (already processed, duplicate).
var ErrStateConflict = errors.New("state conflict")

// ErrListingClosed is returned for operations against a completed listing.
var ErrListingClosed = errors.New("listing closed")
