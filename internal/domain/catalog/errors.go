package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrUnknownSlot = errors.New("unknown task slot")
)
