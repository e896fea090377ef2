// Package pointer mints record identifiers and renders the scannable link to a record.
package pointer

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
)

const DefaultSize = 256

type Emitter struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewEmitter(size int) *Emitter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Emitter{
		size:  size,
		level: qrcode.Medium,
	}
}

// NewID returns a fresh random (version 4) UUID.
func (e *Emitter) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "generate id")
	}
	return id.String(), nil
}

// Emit renders a PNG QR code encoding the public link of id.
func (e *Emitter) Emit(id, baseURL string) ([]byte, error) {
	if baseURL == "" {
		return nil, &domain.PointerEmissionError{ID: id, Err: errors.New("empty base url")}
	}

	png, err := qrcode.Encode(lostfound.ComposeItemLink(baseURL, id), e.level, e.size)
	if err != nil {
		return nil, &domain.PointerEmissionError{ID: id, Err: err}
	}
	return png, nil
}
