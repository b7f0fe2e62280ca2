package quota

import "errors"

// ErrProfileNotFound indicates no profile has been provisioned for the owner.
var ErrProfileNotFound = errors.New("profile not found")
