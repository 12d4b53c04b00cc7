package repository

import (
	"errors"
)

// ErrSkipWrite may be returned from a mutate callback to leave the stored
// record untouched. Mutate then returns the current record and a nil error.
var ErrSkipWrite = errors.New("skip write")
