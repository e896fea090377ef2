//go:build !unix

package registry

import (
	"github.com/pkg/errors"
)

func lockFile(path string) (func(), error) {
	return nil, errors.New("advisory file locks are not supported on this platform")
}
