package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
	"github.com/atinyakov/suborg-shortener/internal/models"
	"github.com/atinyakov/suborg-shortener/internal/storage"
)

type existsErrStorage struct {
	*storage.MemoryStorage
}

func (existsErrStorage) ExistsShort(context.Context, string) (bool, error) {
	return false, errors.New("db is down")
}

func TestNewEndpointGenerator_RejectsBadConfig(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()

	_, err := NewEndpointGenerator(0, 10, mem)
	assert.Error(t, err)

	_, err = NewEndpointGenerator(8, 0, mem)
	assert.Error(t, err)
}

func TestEndpointGenerator_Alphabet(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	g, err := NewEndpointGenerator(12, 10, mem)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		alias, err := g.Generate(context.Background(), models.RootScope())
		require.NoError(t, err)
		require.Len(t, alias, 12)
		for _, c := range alias {
			assert.True(t, strings.ContainsRune(alphabet, c), "unexpected symbol %q", c)
		}
	}
}

func TestEndpointGenerator_SkipsTakenEndpoints(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	g, err := NewEndpointGenerator(2, 10, mem)
	require.NoError(t, err)

	// "00" is taken in the acme scope only; a sequence hitting it first
	// must move on to the next sample.
	_, err = mem.Write(ctx, storage.URLRecord{Short: "acme/00", Suborg: "acme", Original: "https://a.com", UserID: "u"})
	require.NoError(t, err)

	seq := []int{0, 0, 0, 1}
	g.random = func(int) (int, error) {
		v := seq[0]
		seq = seq[1:]
		return v, nil
	}

	alias, err := g.Generate(ctx, models.CategoryScope("acme"))
	require.NoError(t, err)
	assert.Equal(t, "01", alias)

	// same alias is free at root
	g.random = func(int) (int, error) { return 0, nil }
	alias, err = g.Generate(ctx, models.RootScope())
	require.NoError(t, err)
	assert.Equal(t, "00", alias)
}

func TestEndpointGenerator_Exhausted(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	_, err := mem.Write(ctx, storage.URLRecord{Short: "0", Original: "https://a.com", UserID: "u"})
	require.NoError(t, err)

	g, err := NewEndpointGenerator(1, 3, mem)
	require.NoError(t, err)

	calls := 0
	g.random = func(int) (int, error) {
		calls++
		return 0, nil
	}

	_, err = g.Generate(ctx, models.RootScope())
	assert.ErrorIs(t, err, internalerrors.ErrAllocationExhausted)
	assert.Equal(t, 3, calls)
}

func TestEndpointGenerator_StorageFault(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	g, err := NewEndpointGenerator(8, 3, existsErrStorage{mem})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), models.RootScope())
	assert.ErrorIs(t, err, internalerrors.ErrStorage)
}

func TestEndpointGenerator_NeverReturnsTaken(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()
	ctx := context.Background()

	g, err := NewEndpointGenerator(1, 62, mem)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		alias, err := g.Generate(ctx, models.RootScope())
		if errors.Is(err, internalerrors.ErrAllocationExhausted) {
			continue
		}
		require.NoError(t, err)
		require.False(t, seen[alias], "alias %s handed out twice", alias)
		seen[alias] = true

		_, err = mem.Write(ctx, storage.URLRecord{Short: alias, Original: "https://a.com", UserID: "u"})
		require.NoError(t, err)
	}
}
