package permissions

import "errors"

// ErrInvalidLevel is returned when a grant mutation or check names a
// level outside the closed set {read, edit, admin}.
var ErrInvalidLevel = errors.New("permissions: invalid permission level")
