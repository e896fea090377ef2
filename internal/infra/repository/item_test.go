package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/infra/registry"
)

func newItemRepository(t *testing.T) (*ItemRepository, string) {
	dir := t.TempDir()
	repo := NewItemRepository([]string{"wroclaw", "krakow"}, func(office string) string {
		return filepath.Join(dir, office, "registry.csv")
	}, registry.Options{})
	return repo, dir
}

func TestItemRepositoryRouting(t *testing.T) {
	repo, dir := newItemRepository(t)
	ctx := context.Background()

	assert.Equal(t, []string{"krakow", "wroclaw"}, repo.Offices())

	require.NoError(t, repo.Append(ctx, "wroclaw", domain.Record{ID: "a", Name: "Parasol", Category: "Inne"}))

	list, err := repo.List(ctx, "krakow")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.List(ctx, "wroclaw")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Parasol", list[0].Name)

	_, err = os.Stat(filepath.Join(dir, "wroclaw", "registry.csv"))
	require.NoError(t, err)

	_, err = repo.List(ctx, "gdansk")
	var nf domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "office", nf.Resource)
}

func TestItemRepositoryGet(t *testing.T) {
	repo, _ := newItemRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "wroclaw", domain.Record{ID: "a", Name: "Klucze"}))

	rec, err := repo.Get(ctx, "wroclaw", "a")
	require.NoError(t, err)
	assert.Equal(t, "Klucze", rec.Name)

	_, err = repo.Get(ctx, "wroclaw", "b")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.Get(ctx, "krakow", "a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestItemRepositoryMarkReturned(t *testing.T) {
	repo, _ := newItemRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "wroclaw", domain.Record{ID: "a"}))
	require.NoError(t, repo.Append(ctx, "wroclaw", domain.Record{ID: "b"}))

	rec, already, err := repo.MarkReturned(ctx, "wroclaw", "b")
	require.NoError(t, err)
	assert.False(t, already)
	assert.True(t, rec.Returned)

	_, already, err = repo.MarkReturned(ctx, "wroclaw", "b")
	require.NoError(t, err)
	assert.True(t, already)

	a, err := repo.Get(ctx, "wroclaw", "a")
	require.NoError(t, err)
	assert.False(t, a.Returned)

	_, _, err = repo.MarkReturned(ctx, "wroclaw", "zzz")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	n, err := repo.Check(ctx, "wroclaw")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestItemRepositoryConcurrentMarkReturned(t *testing.T) {
	repo, _ := newItemRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "wroclaw", domain.Record{ID: "a"}))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, already, err := repo.MarkReturned(ctx, "wroclaw", "a")
			if err != nil {
				return
			}
			if !already {
				mu.Lock()
				first++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, first)
}
