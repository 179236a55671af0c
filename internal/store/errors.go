package store

import "errors"

// ErrForeignState is returned by UpdateState when the snapshot was not
// derived from this store's slices.
var ErrForeignState = errors.New("snapshot belongs to a different store")

// ErrNilTransaction is returned by Dispatch when tx is nil.
var ErrNilTransaction = errors.New("nil transaction")
