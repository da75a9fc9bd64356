// Package service implements allocation and resolution of short URLs.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
	"github.com/atinyakov/suborg-shortener/internal/models"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// EndpointGenerator produces random aliases that are free in a given scope.
type EndpointGenerator struct {
	storage  Storage
	numChars int // length of every generated alias
	attempts int // collisions tolerated before giving up
	elements string
	random   func(n int) (int, error)
}

// NewEndpointGenerator creates a generator producing aliases of numChars
// symbols, re-sampling at most attempts times on collision.
func NewEndpointGenerator(numChars, attempts int, storage Storage) (*EndpointGenerator, error) {
	if numChars <= 0 {
		return nil, errors.New("endpoint length must be positive")
	}
	if attempts <= 0 {
		return nil, errors.New("allocation attempts must be positive")
	}

	return &EndpointGenerator{
		storage:  storage,
		numChars: numChars,
		attempts: attempts,
		elements: alphabet,
		random:   cryptoIntn,
	}, nil
}

func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Attempts returns the collision budget.
func (g *EndpointGenerator) Attempts() int {
	return g.attempts
}

func (g *EndpointGenerator) sample() (string, error) {
	b := make([]byte, g.numChars)
	for i := range b {
		idx, err := g.random(len(g.elements))
		if err != nil {
			return "", err
		}
		b[i] = g.elements[idx]
	}
	return string(b), nil
}

// Generate returns an alias whose scoped endpoint is not yet in the store.
func (g *EndpointGenerator) Generate(ctx context.Context, scope models.Scope) (string, error) {
	for i := 0; i < g.attempts; i++ {
		alias, err := g.sample()
		if err != nil {
			return "", internalerrors.Wrap(internalerrors.KindStorage, "failed to read random source", err)
		}

		exists, err := g.storage.ExistsShort(ctx, scope.Endpoint(alias))
		if err != nil {
			return "", internalerrors.Wrap(internalerrors.KindStorage, internalerrors.ErrStorage.Reason, err)
		}
		if !exists {
			return alias, nil
		}
	}

	return "", internalerrors.ErrAllocationExhausted
}
