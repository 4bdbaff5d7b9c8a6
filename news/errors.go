package news

import "errors"

// ErrNotFound is returned when a record, category, or tag does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument is returned for malformed requests, such as references to
// unknown categories or tags, or zero-sized pages.
var ErrInvalidArgument = errors.New("invalid argument")
