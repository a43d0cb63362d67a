package store

import "errors"

var (
	// ErrSerialization marks an isolation failure: two concurrent units of
	// work could not both be serialized. The transaction manager retries it
	// under serializable isolation; everything else treats it as fatal.
	ErrSerialization = errors.New("store: serialization conflict")

	// ErrConflict marks a uniqueness violation (duplicate name, email or
	// primary key).
	ErrConflict = errors.New("store: uniqueness conflict")
)
