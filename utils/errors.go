package utils

import (
	"github.com/pkg/errors"
)

// NewUnknownModelError is used when a configuration names a model no constructor exists for.
func NewUnknownModelError(kind, model string) error {
	return errors.Errorf("unknown %s model %q", kind, model)
}
