// Package repo defines a generic repository interface and a Neo4j-backed
// implementation for node entities.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound reports a missing entity from Get.
var ErrNotFound = errors.New("not found")

// Repository is a generic CRUD interface over node entities.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}
