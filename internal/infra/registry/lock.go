package registry

import (
	"context"
	"sync"

	"github.com/totegamma/lostfound/internal/domain"
)

var (
	semMu sync.Mutex
	sems  = map[string]chan struct{}{}
)

// pathSemaphore returns the process-wide semaphore guarding path.
func pathSemaphore(path string) chan struct{} {
	semMu.Lock()
	defer semMu.Unlock()

	sem, ok := sems[path]
	if !ok {
		sem = make(chan struct{}, 1)
		sems[path] = sem
	}
	return sem
}

// lock enters the critical section for the store, waiting until ctx is done.
func (s *Store) lock(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	release := func() { <-s.sem }

	if !s.opts.FileLock {
		return release, nil
	}

	unlockFile, err := lockFile(s.path + ".lock")
	if err != nil {
		release()
		return nil, &domain.StorageWriteError{Path: s.path, Op: "lock", Err: err}
	}
	return func() {
		unlockFile()
		release()
	}, nil
}
