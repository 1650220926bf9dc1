package inbox

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when no viewer identity is available.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound is returned by resolvers when the referenced user, product
	// or post does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProductNotFound is returned when a chat refers to a product that
	// does not exist. It matches ErrNotFound.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)

	ErrInvalidThreadKey = errors.New("invalid thread key")
	ErrEmptyContent     = errors.New("message content is empty")
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrInvalidKind      = errors.New("invalid message kind")
)
