package usecase

import (
	"context"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
)

// ItemRepository defines registry access for one office at a time.
type ItemRepository interface {
	Append(ctx context.Context, office string, rec domain.Record) error
	List(ctx context.Context, office string) ([]domain.Record, error)
	Get(ctx context.Context, office, id string) (domain.Record, error)
	MarkReturned(ctx context.Context, office, id string) (domain.Record, bool, error)
}

// PointerEmitter mints identifiers and renders their QR pointer.
type PointerEmitter interface {
	NewID() (string, error)
	Emit(id, baseURL string) ([]byte, error)
}

// ArtifactStore persists per-id files and returns their public references.
type ArtifactStore interface {
	CreateQR(ctx context.Context, office, id string, png []byte) (string, error)
	CreateXML(ctx context.Context, office, id string, body []byte) (string, error)
	ReadXML(office, id string) ([]byte, error)
	ReplaceXML(ctx context.Context, office, id string, body []byte) error
	Remove(office, id string) error
	RegistryRef(office string) string
}

// LookupCache holds recently fetched records. Implementations never fail.
// Generation is taken before the registry read and Set stores the record under it;
// Invalidate starts a new generation, so a record read before a mutation is never served after it.
type LookupCache interface {
	Get(ctx context.Context, office, id string) (domain.Record, bool)
	Generation(ctx context.Context, office, id string) string
	Set(ctx context.Context, office, id, gen string, rec domain.Record)
	Invalidate(ctx context.Context, office, id string)
}

// MirrorRepository receives a copy of every record for SQL reporting.
type MirrorRepository interface {
	Insert(ctx context.Context, office string, rec domain.Record, sourceID string) error
	SetReturned(ctx context.Context, id string, returned bool) error
}

// EventPublisher broadcasts registry mutations.
type EventPublisher interface {
	Publish(ctx context.Context, event lostfound.Event) error
}
