// Package artifact manages the per-office files published next to a registry:
// the registry itself, QR images and XML metadata documents.
package artifact

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/lostfound/internal/domain"
)

var tracer = otel.Tracer("artifact")

const (
	RegistryFile = "registry.csv"
	qrDir        = "qr"
	xmlDir       = "xml"
)

type Kind int

const (
	KindQR Kind = iota
	KindXML
)

type Store struct {
	root    string
	baseURL string
}

// New returns a Store rooted at dir. References are built under baseURL.
func New(dir, baseURL string) *Store {
	return &Store{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) RegistryPath(office string) string {
	return filepath.Join(s.root, office, RegistryFile)
}

func relPath(kind Kind, id string) string {
	switch kind {
	case KindQR:
		return path.Join(qrDir, "qr-"+id+".png")
	default:
		return path.Join(xmlDir, id+".xml")
	}
}

func (s *Store) path(office string, kind Kind, id string) string {
	return filepath.Join(s.root, office, filepath.FromSlash(relPath(kind, id)))
}

// Ref returns the public reference of an artifact.
func (s *Store) Ref(office string, kind Kind, id string) string {
	return s.baseURL + "/" + office + "/" + relPath(kind, id)
}

func (s *Store) RegistryRef(office string) string {
	return s.baseURL + "/" + office + "/" + RegistryFile
}

// Create writes a new artifact. An existing artifact for the same id is never overwritten.
func (s *Store) Create(ctx context.Context, office string, kind Kind, id string, body []byte) (string, error) {
	_, span := tracer.Start(ctx, "Artifact.Store.Create")
	defer span.End()

	if err := checkSegment(office); err != nil {
		return "", err
	}
	if err := checkSegment(id); err != nil {
		return "", err
	}

	p := s.path(office, kind, id)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		span.RecordError(err)
		return "", &domain.StorageWriteError{Path: p, Op: "mkdir", Err: err}
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		span.RecordError(err)
		return "", &domain.StorageWriteError{Path: p, Op: "create", Err: err}
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(p)
		span.RecordError(err)
		return "", &domain.StorageWriteError{Path: p, Op: "write", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		span.RecordError(err)
		return "", &domain.StorageWriteError{Path: p, Op: "close", Err: err}
	}

	return s.Ref(office, kind, id), nil
}

// Replace atomically overwrites an existing artifact.
func (s *Store) Replace(ctx context.Context, office string, kind Kind, id string, body []byte) error {
	_, span := tracer.Start(ctx, "Artifact.Store.Replace")
	defer span.End()

	if err := checkSegment(office); err != nil {
		return err
	}
	if err := checkSegment(id); err != nil {
		return err
	}

	p := s.path(office, kind, id)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NotFoundError{Resource: "artifact"}
		}
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		span.RecordError(err)
		return &domain.StorageWriteError{Path: p, Op: "create", Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return &domain.StorageWriteError{Path: p, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StorageWriteError{Path: p, Op: "close", Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return &domain.StorageWriteError{Path: p, Op: "chmod", Err: err}
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		span.RecordError(err)
		return &domain.StorageWriteError{Path: p, Op: "rename", Err: err}
	}
	return nil
}

// Remove deletes every artifact of id. Missing files are ignored.
func (s *Store) Remove(office, id string) error {
	if err := checkSegment(office); err != nil {
		return err
	}
	if err := checkSegment(id); err != nil {
		return err
	}

	var errs []error
	for _, kind := range []Kind{KindQR, KindXML} {
		err := os.Remove(s.path(office, kind, id))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrapf(errs[0], "remove %d artifacts of %s", len(errs), id)
	}
	return nil
}

func checkSegment(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.Errorf("invalid path segment %q", name)
	}
	return nil
}

func (s *Store) CreateQR(ctx context.Context, office, id string, png []byte) (string, error) {
	return s.Create(ctx, office, KindQR, id, png)
}

func (s *Store) CreateXML(ctx context.Context, office, id string, body []byte) (string, error) {
	return s.Create(ctx, office, KindXML, id, body)
}

func (s *Store) ReplaceXML(ctx context.Context, office, id string, body []byte) error {
	return s.Replace(ctx, office, KindXML, id, body)
}

func (s *Store) ReadXML(office, id string) ([]byte, error) {
	if err := checkSegment(office); err != nil {
		return nil, err
	}
	if err := checkSegment(id); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(s.path(office, KindXML, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NotFoundError{Resource: "artifact"}
	}
	return body, err
}
