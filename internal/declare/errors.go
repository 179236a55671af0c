package declare

import "errors"

// ErrNotFound is returned by LoadDir when the directory is missing, is not
// a directory or holds no CUE files.
var ErrNotFound = errors.New("declarations not found")
