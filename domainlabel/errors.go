package domainlabel

import "errors"

// ErrUnknownDomain is returned when a string does not resolve to a known
// Label or external alias.
var ErrUnknownDomain = errors.New("unknown domain label")
