package lock

import "errors"

var (
	// ErrEmptyKey indicates an empty lock key was passed to a backend.
	ErrEmptyKey = errors.New("lock key is empty")
	// ErrNilClient indicates a backend was built without a client.
	ErrNilClient = errors.New("lock client is nil")
	// ErrLockValueMismatch indicates the lock value doesn't match or lock expired.
	ErrLockValueMismatch = errors.New("lock value mismatch or lock has expired")
	// ErrLockValueType indicates the stored lock value has an unexpected type.
	ErrLockValueType = errors.New("lock value type error")
)
