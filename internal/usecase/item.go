package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/infra/metadata"
	"github.com/totegamma/lostfound/schemas"
)

var tracer = otel.Tracer("usecase")

type ItemUsecase struct {
	repo          ItemRepository
	pointer       PointerEmitter
	artifacts     ArtifactStore
	offices       map[string]domain.Office
	publicBaseURL string

	cache  LookupCache
	mirror MirrorRepository
	events EventPublisher
	now    func() time.Time
}

type Option func(*ItemUsecase)

func WithLookupCache(c LookupCache) Option {
	return func(uc *ItemUsecase) { uc.cache = c }
}

func WithMirror(m MirrorRepository) Option {
	return func(uc *ItemUsecase) { uc.mirror = m }
}

func WithEvents(p EventPublisher) Option {
	return func(uc *ItemUsecase) { uc.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(uc *ItemUsecase) { uc.now = now }
}

func NewItemUsecase(
	repo ItemRepository,
	pointer PointerEmitter,
	artifacts ArtifactStore,
	offices []domain.Office,
	publicBaseURL string,
	opts ...Option,
) *ItemUsecase {
	byName := make(map[string]domain.Office, len(offices))
	for _, o := range offices {
		byName[o.Name] = o
	}

	uc := &ItemUsecase{
		repo:          repo,
		pointer:       pointer,
		artifacts:     artifacts,
		offices:       byName,
		publicBaseURL: publicBaseURL,
		cache:         noopCache{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ItemUsecase) office(name string) (domain.Office, error) {
	o, ok := uc.offices[name]
	if !ok {
		return domain.Office{}, domain.NotFoundError{Resource: "office"}
	}
	return o, nil
}

// Link returns the public detail link of id.
func (uc *ItemUsecase) Link(id string) string {
	return lostfound.ComposeItemLink(uc.publicBaseURL, id)
}

// Item renders rec as its public view.
func (uc *ItemUsecase) Item(rec domain.Record) lostfound.Item {
	return toItem(rec, uc.Link(rec.ID))
}

// Publish registers a new found item. The record is stored only after its
// QR pointer and metadata document exist; they are removed again if the
// registry write fails.
func (uc *ItemUsecase) Publish(ctx context.Context, officeName string, form lostfound.FormData) (lostfound.PublishResult, error) {
	ctx, span := tracer.Start(ctx, "Item.Usecase.Publish")
	defer span.End()
	span.SetAttributes(attribute.String("office", officeName))

	office, err := uc.office(officeName)
	if err != nil {
		return lostfound.PublishResult{}, err
	}

	now := uc.now()
	if err := validateForm(form, now.Format(domain.DateLayout)); err != nil {
		return lostfound.PublishResult{}, err
	}

	id, err := uc.pointer.NewID()
	if err != nil {
		span.RecordError(err)
		return lostfound.PublishResult{}, err
	}
	span.SetAttributes(attribute.String("id", id))

	rec, err := buildRecord(id, form, office.Template)
	if err != nil {
		span.RecordError(err)
		return lostfound.PublishResult{}, err
	}

	png, err := uc.pointer.Emit(id, uc.publicBaseURL)
	if err != nil {
		span.RecordError(err)
		return lostfound.PublishResult{}, err
	}

	link := uc.Link(id)
	doc, err := metadata.Encode(rec, office, link, translationsOf(form), now)
	if err != nil {
		span.RecordError(err)
		return lostfound.PublishResult{}, err
	}

	qrRef, err := uc.artifacts.CreateQR(ctx, office.Name, id, png)
	if err != nil {
		span.RecordError(err)
		return lostfound.PublishResult{}, err
	}

	xmlRef, err := uc.artifacts.CreateXML(ctx, office.Name, id, doc)
	if err != nil {
		span.RecordError(err)
		uc.rollback(ctx, office.Name, id)
		return lostfound.PublishResult{}, err
	}

	if err := uc.repo.Append(ctx, office.Name, rec); err != nil {
		span.RecordError(err)
		uc.rollback(ctx, office.Name, id)
		return lostfound.PublishResult{}, errors.Wrapf(err, "publish %s", id)
	}

	slog.InfoContext(
		ctx, "item published",
		slog.String("office", office.Name),
		slog.String("id", id),
		slog.String("module", "usecase"),
	)

	if uc.mirror != nil {
		if err := uc.mirror.Insert(ctx, office.Name, rec, form.SourceID); err != nil {
			slog.WarnContext(ctx, "mirror insert failed", slog.String("id", id), slog.String("error", err.Error()), slog.String("module", "usecase"))
		}
	}
	uc.signal(ctx, schemas.ItemPublishedURL, office.Name, rec)

	return lostfound.PublishResult{
		Success:    true,
		ID:         id,
		PublicLink: link,
		Files: lostfound.FileRefs{
			CSV: uc.artifacts.RegistryRef(office.Name),
			QR:  qrRef,
			XML: xmlRef,
		},
	}, nil
}

func (uc *ItemUsecase) rollback(ctx context.Context, office, id string) {
	if err := uc.artifacts.Remove(office, id); err != nil {
		slog.ErrorContext(
			ctx, "failed to remove artifacts of unpublished item",
			slog.String("office", office),
			slog.String("id", id),
			slog.String("error", err.Error()),
			slog.String("module", "usecase"),
		)
	}
}

// ImportXML publishes an item described by a ZgloszenieZguby document.
// The document's identifier is kept as the source id, a fresh id is minted.
func (uc *ItemUsecase) ImportXML(ctx context.Context, officeName string, data []byte) (lostfound.PublishResult, error) {
	ctx, span := tracer.Start(ctx, "Item.Usecase.ImportXML")
	defer span.End()

	form, err := metadata.Decode(data)
	if err != nil {
		return lostfound.PublishResult{}, err
	}
	return uc.Publish(ctx, officeName, form)
}

func (uc *ItemUsecase) FetchByID(ctx context.Context, officeName, id string) (domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Item.Usecase.FetchByID")
	defer span.End()

	if _, err := uc.office(officeName); err != nil {
		return domain.Record{}, err
	}

	if rec, ok := uc.cache.Get(ctx, officeName, id); ok {
		return rec, nil
	}

	gen := uc.cache.Generation(ctx, officeName, id)
	rec, err := uc.repo.Get(ctx, officeName, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return domain.Record{}, err
	}

	uc.cache.Set(ctx, officeName, id, gen, rec)
	return rec, nil
}

// List returns the office registry in file order, optionally filtered by the returned flag.
func (uc *ItemUsecase) List(ctx context.Context, officeName string, returned *bool) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Item.Usecase.List")
	defer span.End()

	if _, err := uc.office(officeName); err != nil {
		return nil, err
	}

	records, err := uc.repo.List(ctx, officeName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if returned == nil {
		return records, nil
	}

	filtered := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec.Returned == *returned {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// MarkReturned flips the returned flag. Repeating it succeeds and reports AlreadyReturned.
func (uc *ItemUsecase) MarkReturned(ctx context.Context, officeName, id string) (lostfound.MarkReturnedResult, error) {
	ctx, span := tracer.Start(ctx, "Item.Usecase.MarkReturned")
	defer span.End()
	span.SetAttributes(attribute.String("office", officeName), attribute.String("id", id))

	if _, err := uc.office(officeName); err != nil {
		return lostfound.MarkReturnedResult{}, err
	}

	rec, already, err := uc.repo.MarkReturned(ctx, officeName, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return lostfound.MarkReturnedResult{}, err
	}

	uc.cache.Invalidate(ctx, officeName, id)

	if !already {
		slog.InfoContext(
			ctx, "item returned",
			slog.String("office", officeName),
			slog.String("id", id),
			slog.String("module", "usecase"),
		)
		uc.refreshMetadata(ctx, officeName, id)
		if uc.mirror != nil {
			if err := uc.mirror.SetReturned(ctx, id, true); err != nil {
				slog.WarnContext(ctx, "mirror update failed", slog.String("id", id), slog.String("error", err.Error()), slog.String("module", "usecase"))
			}
		}
		uc.signal(ctx, schemas.ItemReturnedURL, officeName, rec)
	}

	return lostfound.MarkReturnedResult{OK: true, AlreadyReturned: already}, nil
}

func (uc *ItemUsecase) refreshMetadata(ctx context.Context, office, id string) {
	doc, err := uc.artifacts.ReadXML(office, id)
	if err == nil {
		doc, err = metadata.MarkReturned(doc)
	}
	if err == nil {
		err = uc.artifacts.ReplaceXML(ctx, office, id, doc)
	}
	if err != nil {
		slog.WarnContext(
			ctx, "metadata document not updated",
			slog.String("office", office),
			slog.String("id", id),
			slog.String("error", err.Error()),
			slog.String("module", "usecase"),
		)
	}
}

func (uc *ItemUsecase) signal(ctx context.Context, schema, office string, rec domain.Record) {
	if uc.events == nil {
		return
	}
	item := uc.Item(rec)
	err := uc.events.Publish(ctx, lostfound.Event{
		Schema: schema,
		Office: office,
		ItemID: rec.ID,
		At:     uc.now(),
		Item:   &item,
	})
	if err != nil {
		slog.WarnContext(ctx, "event publish failed", slog.String("id", rec.ID), slog.String("error", err.Error()), slog.String("module", "usecase"))
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, string) (domain.Record, bool)  { return domain.Record{}, false }
func (noopCache) Generation(context.Context, string, string) string          { return "" }
func (noopCache) Set(context.Context, string, string, string, domain.Record) {}
func (noopCache) Invalidate(context.Context, string, string)                 {}
