package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/schemas"
)

type mockItemRepo struct {
	mu        sync.Mutex
	records   map[string][]domain.Record
	appendErr error
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{records: map[string][]domain.Record{}}
}

func (m *mockItemRepo) Append(ctx context.Context, office string, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records[office] = append(m.records[office], rec)
	return nil
}

func (m *mockItemRepo) List(ctx context.Context, office string) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Record{}, m.records[office]...), nil
}

func (m *mockItemRepo) Get(ctx context.Context, office, id string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records[office] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.Record{}, domain.NotFoundError{Resource: "item"}
}

func (m *mockItemRepo) MarkReturned(ctx context.Context, office, id string) (domain.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records[office] {
		if rec.ID == id {
			already := rec.Returned
			m.records[office][i].Returned = true
			return m.records[office][i], already, nil
		}
	}
	return domain.Record{}, false, domain.NotFoundError{Resource: "item"}
}

type mockPointer struct {
	next    int
	emitErr error
}

func (m *mockPointer) NewID() (string, error) {
	m.next++
	return "id-" + strconv.Itoa(m.next), nil
}

func (m *mockPointer) Emit(id, baseURL string) ([]byte, error) {
	if m.emitErr != nil {
		return nil, &domain.PointerEmissionError{ID: id, Err: m.emitErr}
	}
	return []byte("png:" + baseURL + "/" + id), nil
}

type mockArtifacts struct {
	files     map[string][]byte
	removed   []string
	createErr error
}

func newMockArtifacts() *mockArtifacts {
	return &mockArtifacts{files: map[string][]byte{}}
}

func (m *mockArtifacts) CreateQR(ctx context.Context, office, id string, png []byte) (string, error) {
	m.files[office+"/qr/"+id] = png
	return "ref/" + office + "/qr/" + id, nil
}

func (m *mockArtifacts) CreateXML(ctx context.Context, office, id string, body []byte) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.files[office+"/xml/"+id] = body
	return "ref/" + office + "/xml/" + id, nil
}

func (m *mockArtifacts) ReadXML(office, id string) ([]byte, error) {
	body, ok := m.files[office+"/xml/"+id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "artifact"}
	}
	return body, nil
}

func (m *mockArtifacts) ReplaceXML(ctx context.Context, office, id string, body []byte) error {
	m.files[office+"/xml/"+id] = body
	return nil
}

func (m *mockArtifacts) Remove(office, id string) error {
	delete(m.files, office+"/qr/"+id)
	delete(m.files, office+"/xml/"+id)
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockArtifacts) RegistryRef(office string) string {
	return "ref/" + office + "/registry.csv"
}

type mockEvents struct {
	events []lostfound.Event
}

func (m *mockEvents) Publish(ctx context.Context, event lostfound.Event) error {
	m.events = append(m.events, event)
	return nil
}

type mockMirror struct {
	inserted []string
	returned []string
	err      error
}

func (m *mockMirror) Insert(ctx context.Context, office string, rec domain.Record, sourceID string) error {
	m.inserted = append(m.inserted, rec.ID)
	return m.err
}

func (m *mockMirror) SetReturned(ctx context.Context, id string, returned bool) error {
	m.returned = append(m.returned, id)
	return m.err
}

type mockCache struct {
	entries     map[string]domain.Record
	invalidated []string
}

func (m *mockCache) Get(ctx context.Context, office, id string) (domain.Record, bool) {
	rec, ok := m.entries[office+"/"+id]
	return rec, ok
}

func (m *mockCache) Generation(ctx context.Context, office, id string) string {
	return "1"
}

func (m *mockCache) Set(ctx context.Context, office, id, gen string, rec domain.Record) {
	m.entries[office+"/"+id] = rec
}

func (m *mockCache) Invalidate(ctx context.Context, office, id string) {
	delete(m.entries, office+"/"+id)
	m.invalidated = append(m.invalidated, id)
}

var testOffice = domain.Office{
	Name:        "wroclaw",
	DisplayName: "Urząd Miejski Wrocławia",
	Template: domain.Template{
		Tags:        []string{"zguba"},
		Supplements: map[string]any{"licencja": "CC0"},
	},
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	uc        *ItemUsecase
	repo      *mockItemRepo
	pointer   *mockPointer
	artifacts *mockArtifacts
	events    *mockEvents
	mirror    *mockMirror
	cache     *mockCache
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMockItemRepo(),
		pointer:   &mockPointer{},
		artifacts: newMockArtifacts(),
		events:    &mockEvents{},
		mirror:    &mockMirror{},
		cache:     &mockCache{entries: map[string]domain.Record{}},
	}
	f.uc = NewItemUsecase(
		f.repo, f.pointer, f.artifacts,
		[]domain.Office{testOffice},
		"https://bip.example.pl/rzeczy",
		WithEvents(f.events),
		WithMirror(f.mirror),
		WithLookupCache(f.cache),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func validForm() lostfound.FormData {
	return lostfound.FormData{
		Category:      "ODZIEZ",
		Name:          "Czarny plecak",
		Description:   "Plecak, \"duży\"",
		DescriptionEN: "Black backpack",
		FoundDate:     "2025-05-01",
	}
}

func TestItemUsecasePublish(t *testing.T) {
	f := newFixture()

	res, err := f.uc.Publish(context.Background(), "wroclaw", validForm())
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if !res.Success || res.ID != "id-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.PublicLink != "https://bip.example.pl/rzeczy/id-1" {
		t.Fatalf("unexpected link %s", res.PublicLink)
	}
	if res.Files.CSV != "ref/wroclaw/registry.csv" || res.Files.QR != "ref/wroclaw/qr/id-1" || res.Files.XML != "ref/wroclaw/xml/id-1" {
		t.Fatalf("unexpected refs %+v", res.Files)
	}

	stored := f.repo.records["wroclaw"]
	if len(stored) != 1 {
		t.Fatalf("expected 1 record got %d", len(stored))
	}
	rec := stored[0]
	if rec.Returned || rec.Name != "Czarny plecak" || rec.Lat != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Extra.Tags != `["zguba"]` {
		t.Fatalf("unexpected tags %s", rec.Extra.Tags)
	}
	if rec.Extra.Supplements != `{"licencja":"CC0","tlumaczenia":{"en":"Black backpack"}}` {
		t.Fatalf("unexpected supplements %s", rec.Extra.Supplements)
	}

	if string(f.artifacts.files["wroclaw/qr/id-1"]) != "png:https://bip.example.pl/rzeczy/id-1" {
		t.Fatalf("qr not written")
	}
	if len(f.mirror.inserted) != 1 {
		t.Fatalf("expected mirror insert")
	}
	if len(f.events.events) != 1 || f.events.events[0].Schema != schemas.ItemPublishedURL {
		t.Fatalf("expected published event")
	}
}

func TestItemUsecasePublishValidation(t *testing.T) {
	lat := 51.1
	bad := 200.0

	tests := map[string]struct {
		mutate func(*lostfound.FormData)
		field  string
	}{
		"missing name":     {func(f *lostfound.FormData) { f.Name = "  " }, "nazwa"},
		"missing category": {func(f *lostfound.FormData) { f.Category = "" }, "kategoria"},
		"missing date":     {func(f *lostfound.FormData) { f.FoundDate = "" }, "data"},
		"bad date":         {func(f *lostfound.FormData) { f.FoundDate = "01.05.2025" }, "data"},
		"future date":      {func(f *lostfound.FormData) { f.FoundDate = "2025-06-02" }, "data"},
		"too old":          {func(f *lostfound.FormData) { f.FoundDate = "1999-12-31" }, "data"},
		"lat only":         {func(f *lostfound.FormData) { f.Lat = &lat }, "lat"},
		"lng out of range": {func(f *lostfound.FormData) { f.Lat = &lat; f.Lng = &bad }, "lng"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			form := validForm()
			tc.mutate(&form)

			_, err := f.uc.Publish(context.Background(), "wroclaw", form)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error got %v", err)
			}
			if verr.Fields[0].Field != tc.field {
				t.Fatalf("expected field %s got %+v", tc.field, verr.Fields)
			}
			if f.pointer.next != 0 {
				t.Fatalf("no id must be minted for invalid input")
			}
		})
	}
}

func TestItemUsecasePublishToday(t *testing.T) {
	f := newFixture()
	form := validForm()
	form.FoundDate = "2025-06-01"

	if _, err := f.uc.Publish(context.Background(), "wroclaw", form); err != nil {
		t.Fatalf("found today must be accepted: %v", err)
	}
}

func TestItemUsecasePublishPointerFailure(t *testing.T) {
	f := newFixture()
	f.pointer.emitErr = errors.New("too long")

	_, err := f.uc.Publish(context.Background(), "wroclaw", validForm())
	var perr *domain.PointerEmissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected pointer error got %v", err)
	}
	if len(f.repo.records["wroclaw"]) != 0 {
		t.Fatalf("record must not be stored without a pointer")
	}
	if len(f.events.events) != 0 {
		t.Fatalf("no event expected")
	}
}

func TestItemUsecasePublishStorageFailure(t *testing.T) {
	f := newFixture()
	f.repo.appendErr = &domain.StorageWriteError{Path: "registry.csv", Op: "rename", Err: errors.New("disk full")}

	_, err := f.uc.Publish(context.Background(), "wroclaw", validForm())
	var werr *domain.StorageWriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected storage error got %v", err)
	}
	if len(f.artifacts.files) != 0 {
		t.Fatalf("artifacts must be removed, left %v", f.artifacts.files)
	}
	if len(f.artifacts.removed) != 1 {
		t.Fatalf("expected rollback")
	}
}

func TestItemUsecasePublishArtifactFailure(t *testing.T) {
	f := newFixture()
	f.artifacts.createErr = &domain.StorageWriteError{Op: "create", Err: errors.New("read-only")}

	_, err := f.uc.Publish(context.Background(), "wroclaw", validForm())
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := f.artifacts.files["wroclaw/qr/id-1"]; ok {
		t.Fatalf("qr must be rolled back")
	}
	if len(f.repo.records["wroclaw"]) != 0 {
		t.Fatalf("record must not be stored")
	}
}

func TestItemUsecaseUnknownOffice(t *testing.T) {
	f := newFixture()

	_, err := f.uc.Publish(context.Background(), "gdansk", validForm())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
	_, err = f.uc.FetchByID(context.Background(), "gdansk", "id-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestItemUsecaseFetchByID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.uc.Publish(ctx, "wroclaw", validForm())
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	rec, err := f.uc.FetchByID(ctx, "wroclaw", res.ID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if rec.Name != "Czarny plecak" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, ok := f.cache.entries["wroclaw/"+res.ID]; !ok {
		t.Fatalf("expected record to be cached")
	}

	_, err = f.uc.FetchByID(ctx, "wroclaw", "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestItemUsecaseMarkReturned(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.uc.Publish(ctx, "wroclaw", validForm())
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if _, err := f.uc.FetchByID(ctx, "wroclaw", res.ID); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	out, err := f.uc.MarkReturned(ctx, "wroclaw", res.ID)
	if err != nil {
		t.Fatalf("mark returned failed: %v", err)
	}
	if !out.OK || out.AlreadyReturned {
		t.Fatalf("unexpected result %+v", out)
	}
	if _, ok := f.cache.entries["wroclaw/"+res.ID]; ok {
		t.Fatalf("cache must be invalidated")
	}

	out, err = f.uc.MarkReturned(ctx, "wroclaw", res.ID)
	if err != nil {
		t.Fatalf("second mark returned failed: %v", err)
	}
	if !out.OK || !out.AlreadyReturned {
		t.Fatalf("unexpected result %+v", out)
	}

	rec, err := f.uc.FetchByID(ctx, "wroclaw", res.ID)
	if err != nil || !rec.Returned {
		t.Fatalf("expected returned record, got %+v %v", rec, err)
	}

	if len(f.mirror.returned) != 1 {
		t.Fatalf("mirror must be updated once, got %d", len(f.mirror.returned))
	}
	if len(f.events.events) != 2 || f.events.events[1].Schema != schemas.ItemReturnedURL {
		t.Fatalf("expected one returned event")
	}

	_, err = f.uc.MarkReturned(ctx, "wroclaw", "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestItemUsecaseSideEffectFailuresAreIgnored(t *testing.T) {
	f := newFixture()
	f.mirror.err = errors.New("db down")

	if _, err := f.uc.Publish(context.Background(), "wroclaw", validForm()); err != nil {
		t.Fatalf("mirror failure must not fail publish: %v", err)
	}
}

func TestItemUsecaseList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, _ := f.uc.Publish(ctx, "wroclaw", validForm())
	f.uc.Publish(ctx, "wroclaw", validForm())
	f.uc.MarkReturned(ctx, "wroclaw", first.ID)

	all, err := f.uc.List(ctx, "wroclaw", nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 records got %d %v", len(all), err)
	}

	yes, no := true, false
	returned, _ := f.uc.List(ctx, "wroclaw", &yes)
	active, _ := f.uc.List(ctx, "wroclaw", &no)
	if len(returned) != 1 || returned[0].ID != first.ID || len(active) != 1 {
		t.Fatalf("unexpected filter result %v %v", returned, active)
	}
}

func TestItemUsecaseImportXML(t *testing.T) {
	f := newFixture()

	doc := `<ZgloszenieZguby>
  <Naglowek><IdentyfikatorUnikalny>EXT-42</IdentyfikatorUnikalny></Naglowek>
  <Przedmiot><KategoriaGlowna>Klucze</KategoriaGlowna><NazwaPubliczna>Pęk kluczy</NazwaPubliczna></Przedmiot>
  <KontekstZnalezienia><DataZnalezienia>2025-04-10</DataZnalezienia></KontekstZnalezienia>
  <DaneMagazynowe><Status>PRZECHOWYWANY</Status></DaneMagazynowe>
</ZgloszenieZguby>`

	res, err := f.uc.ImportXML(context.Background(), "wroclaw", []byte(doc))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	rec := f.repo.records["wroclaw"][0]
	if rec.ID != res.ID || rec.Name != "Pęk kluczy" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Extra.Supplements != `{"licencja":"CC0","zrodloId":"EXT-42"}` {
		t.Fatalf("unexpected supplements %s", rec.Extra.Supplements)
	}

	_, err = f.uc.ImportXML(context.Background(), "wroclaw", []byte("<ZgloszenieZguby/>"))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestItemView(t *testing.T) {
	f := newFixture()

	item := f.uc.Item(domain.Record{
		ID:       "abc",
		Lat:      "51.1",
		Lon:      "17.03",
		Returned: true,
		Extra:    domain.ExtraPayload{Supplements: `{"tlumaczenia":{"en":"Keys","uk":"Ключі"}}`},
	})

	if item.Status != "RETURNED" || !item.Returned {
		t.Fatalf("unexpected status %s", item.Status)
	}
	if item.Lat == nil || *item.Lat != 51.1 || item.Lng == nil || *item.Lng != 17.03 {
		t.Fatalf("unexpected geo %v %v", item.Lat, item.Lng)
	}
	if item.Translations["uk"] != "Ключі" {
		t.Fatalf("unexpected translations %v", item.Translations)
	}
	if item.PublicLink != "https://bip.example.pl/rzeczy/abc" {
		t.Fatalf("unexpected link %s", item.PublicLink)
	}
}
