package replay

import "errors"

// ErrInvalidOrdering is returned when bar timestamps are not strictly ascending.
var ErrInvalidOrdering = errors.New("bars are not in strictly ascending timestamp order")
