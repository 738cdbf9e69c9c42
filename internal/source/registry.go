// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Source type identifiers accepted in job descriptions.
const (
	TypeGoogleSheets = 1
	TypeHTTPCSV      = 2
	TypeDriveFolder  = 3
	TypeHTTPExcel    = 4
	TypeMorrisXML    = 5
	TypeSFTPExcel    = 6
	TypeSFTPCSV      = 7
	TypeRESTAPI      = 8
	TypeBlobCSV      = 9
	TypeBlobExcel    = 10
	TypeS3CSV        = 11
	TypeS3Excel      = 12
)

var (
	// ErrUnsupportedType is returned when no reader is registered for a source type.
	ErrUnsupportedType = errors.New("unsupported source type")
)

var _ Resolver = &Registry{}

// Registry maps source type identifiers to reader factories.
type Registry struct {
	lock      sync.RWMutex
	factories map[int]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[int]Factory)}
}

// Register binds factory to typeID, replacing any previous binding.
func (r *Registry) Register(typeID int, factory Factory) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.factories[typeID] = factory
}

// RegisterReader binds a supplier independent reader to typeID.
func (r *Registry) RegisterReader(typeID int, reader Reader) {
	r.Register(typeID, Static(reader))
}

// TypeIDs returns the registered type identifiers in ascending order.
func (r *Registry) TypeIDs() []int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, typeID, supplierID int) (Reader, error) {
	r.lock.RLock()
	factory, ok := r.factories[typeID]
	r.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, typeID)
	}

	reader, err := factory(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("source type %d for supplier %d: %w", typeID, supplierID, err)
	}
	return reader, nil
}
