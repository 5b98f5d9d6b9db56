package domain

import "errors"

var (
	// ErrMissingCredential indica requisição sem a credencial que identifica
	// a cota. É erro do cliente (401), nunca deve derrubar o worker.
	ErrMissingCredential = errors.New("missing bearer credential")
)

func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}
