package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicate indicates a uniqueness constraint was violated.
var ErrDuplicate = errors.New("repository: duplicate")

// ErrInvalidArgument indicates the database rejected a malformed value.
var ErrInvalidArgument = errors.New("repository: invalid argument")
