// Package registry owns the per-office registry file.
//
// Every read-modify-write cycle runs inside a critical section keyed by the
// file path, and every write replaces the file through a rename, so readers
// always observe a complete file.
package registry

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/infra/codec"
)

var tracer = otel.Tracer("registry")

// ErrDuplicateID is returned when appending a record whose id is already stored.
var ErrDuplicateID = errors.New("record id already exists")

// snapshots caches parsed registry files by absolute path.
var snapshots = cache.New(cache.NoExpiration, 10*time.Minute)

type Options struct {
	CorruptPolicy domain.CorruptPolicy
	// FileLock adds an advisory lock on <path>.lock for multi-process deployments.
	FileLock bool
}

type Store struct {
	path string
	opts Options
	sem  chan struct{}
}

type snapshot struct {
	modTime time.Time
	size    int64
	records []domain.Record
	index   map[string]int
}

func Open(path string, opts Options) *Store {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return &Store{
		path: abs,
		opts: opts,
		sem:  pathSemaphore(abs),
	}
}

func (s *Store) Path() string {
	return s.path
}

// ReadAll returns every record in file order. A missing file yields no records.
func (s *Store) ReadAll(ctx context.Context) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Registry.Store.ReadAll")
	defer span.End()
	span.SetAttributes(attribute.String("path", s.path))

	snap, err := s.load(false)
	if err != nil {
		if s.degrade(ctx, err) {
			return []domain.Record{}, nil
		}
		span.RecordError(err)
		return nil, err
	}
	return cloneRecords(snap.records), nil
}

// Find returns the record with the given id.
func (s *Store) Find(ctx context.Context, id string) (domain.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Store.Find")
	defer span.End()

	snap, err := s.load(false)
	if err != nil {
		if s.degrade(ctx, err) {
			return domain.Record{}, false, nil
		}
		span.RecordError(err)
		return domain.Record{}, false, err
	}

	i, ok := snap.index[id]
	if !ok {
		return domain.Record{}, false, nil
	}
	return snap.records[i], true, nil
}

// Check parses the file strictly regardless of the corrupt policy and returns the record count.
func (s *Store) Check(ctx context.Context) (int, error) {
	snap, err := s.load(true)
	if err != nil {
		return 0, err
	}
	return len(snap.records), nil
}

// AppendOne adds r after the existing records.
func (s *Store) AppendOne(ctx context.Context, r domain.Record) error {
	ctx, span := tracer.Start(ctx, "Registry.Store.AppendOne")
	defer span.End()
	span.SetAttributes(attribute.String("path", s.path), attribute.String("id", r.ID))

	_, err := s.mutate(ctx, func(records []domain.Record, index map[string]int) ([]domain.Record, bool, error) {
		if _, exists := index[r.ID]; exists {
			return nil, false, errors.Wrapf(ErrDuplicateID, "append %s", r.ID)
		}
		return append(records, r), true, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// WriteAll replaces the file contents with records.
func (s *Store) WriteAll(ctx context.Context, records []domain.Record) error {
	ctx, span := tracer.Start(ctx, "Registry.Store.WriteAll")
	defer span.End()

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.write(ctx, records)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Update applies fn to the record with the given id and rewrites the file.
// It reports whether the id was found.
func (s *Store) Update(ctx context.Context, id string, fn func(r *domain.Record) error) (bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Store.Update")
	defer span.End()
	span.SetAttributes(attribute.String("path", s.path), attribute.String("id", id))

	found, err := s.mutate(ctx, func(records []domain.Record, index map[string]int) ([]domain.Record, bool, error) {
		i, ok := index[id]
		if !ok {
			return nil, false, nil
		}
		if err := fn(&records[i]); err != nil {
			return nil, false, err
		}
		return records, true, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return found, err
}

// UpdateField sets one column of the record with the given id.
func (s *Store) UpdateField(ctx context.Context, id, field, value string) (bool, error) {
	return s.Update(ctx, id, func(r *domain.Record) error {
		return codec.SetField(r, field, value)
	})
}

// mutate runs fn on a fresh, strictly parsed copy of the file inside the critical section.
// A corrupt file is never rewritten.
func (s *Store) mutate(
	ctx context.Context,
	fn func(records []domain.Record, index map[string]int) ([]domain.Record, bool, error),
) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	snap, err := s.load(s.opts.FileLock)
	if err != nil {
		return false, err
	}

	next, changed, err := fn(cloneRecords(snap.records), snap.index)
	if err != nil || !changed {
		return false, err
	}

	if err := s.write(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) degrade(ctx context.Context, err error) bool {
	if s.opts.CorruptPolicy != domain.CorruptEmpty || !errors.Is(err, domain.ErrCorruptStore) {
		return false
	}
	slog.WarnContext(
		ctx, "registry file unreadable, serving empty result",
		slog.String("path", s.path),
		slog.String("error", err.Error()),
		slog.String("module", "registry"),
	)
	return true
}

// load returns the parsed file, reusing the cached snapshot unless the file changed.
func (s *Store) load(fresh bool) (*snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return &snapshot{records: []domain.Record{}, index: map[string]int{}}, nil
		}
		return nil, errors.Wrapf(domain.ErrCorruptStore, "open %s: %v", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(domain.ErrCorruptStore, "stat %s: %v", s.path, err)
	}

	if !fresh {
		if cached, ok := snapshots.Get(s.path); ok {
			snap := cached.(*snapshot)
			if snap.modTime.Equal(info.ModTime()) && snap.size == info.Size() {
				return snap, nil
			}
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrCorruptStore, "read %s: %v", s.path, err)
	}

	records, err := codec.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrCorruptStore, "parse %s: %v", s.path, err)
	}

	snap := newSnapshot(records, info)
	snapshots.Set(s.path, snap, cache.NoExpiration)
	return snap, nil
}

func newSnapshot(records []domain.Record, info os.FileInfo) *snapshot {
	index := make(map[string]int, len(records))
	for i, r := range records {
		index[r.ID] = i
	}
	return &snapshot{
		modTime: info.ModTime(),
		size:    info.Size(),
		records: records,
		index:   index,
	}
}

// write serializes records to a temporary file beside the store and renames it into place.
func (s *Store) write(ctx context.Context, records []domain.Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "create", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.WriteString(tmp, codec.BOM); err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "write", Err: err}
	}
	if _, err := tmp.Write(codec.Encode(records)); err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "close", Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "chmod", Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &domain.StorageWriteError{Path: s.path, Op: "rename", Err: err}
	}
	committed = true

	info, err := os.Stat(s.path)
	if err != nil {
		snapshots.Delete(s.path)
		return nil
	}
	snapshots.Set(s.path, newSnapshot(cloneRecords(records), info), cache.NoExpiration)

	slog.DebugContext(
		ctx, "registry written",
		slog.String("path", s.path),
		slog.Int("records", len(records)),
		slog.String("module", "registry"),
	)
	return nil
}

func cloneRecords(records []domain.Record) []domain.Record {
	out := make([]domain.Record, len(records))
	copy(out, records)
	return out
}
