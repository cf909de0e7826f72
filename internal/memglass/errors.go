package memglass

import "errors"

// Error kinds surfaced by the core, per the error handling design.
var (
	// ErrSessionUnavailable is returned when a session's header region could
	// not be opened or mapped.
	ErrSessionUnavailable = errors.New("memglass: session unavailable")

	// ErrProtocolMismatch is returned when a header's magic or version does
	// not match this build's expectations.
	ErrProtocolMismatch = errors.New("memglass: protocol mismatch")

	// ErrOutOfSpace is returned when an allocation cannot be satisfied
	// because a requested size exceeds the maximum region size, or a
	// field-entry run exceeds every overflow region's field capacity.
	ErrOutOfSpace = errors.New("memglass: out of space")

	// ErrNameConflict is returned when a shared-memory create request finds
	// an existing name.
	ErrNameConflict = errors.New("memglass: name conflict")

	// ErrAlreadyRegistered is returned when a type id collides with an
	// existing, incompatible schema.
	ErrAlreadyRegistered = errors.New("memglass: type already registered with a different schema")

	// ErrInvalidField is returned when a field path does not resolve against
	// a type's field array.
	ErrInvalidField = errors.New("memglass: invalid field")

	// ErrInvalidObject is returned when a pointer does not lie within any
	// known region, or an entry's state is not Alive where required.
	ErrInvalidObject = errors.New("memglass: invalid object")
)
