package scheduler

import (
	"errors"
	"fmt"
)

// ErrHalted is returned by RunOnce after an invariant violation has stopped
// the scheduler.
var ErrHalted = errors.New("archival scheduler halted")

// ProvisioningError is returned when a shard could not be obtained from the
// provisioner.
type ProvisioningError struct {
	err error
}

// NewProvisioningError constructs a new provisioning error.
func NewProvisioningError(err error) ProvisioningError {
	return ProvisioningError{err}
}

func (e ProvisioningError) Error() string {
	return fmt.Sprintf("shard provisioning failed: %s", e.err)
}

// Unwrap returns the underlying error.
func (e ProvisioningError) Unwrap() error {
	return e.err
}

// Is returns true if the target is a provisioning error.
func (e ProvisioningError) Is(target error) bool {
	_, ok := target.(ProvisioningError)
	return ok
}

// TransferError is returned when records could not be written to a
// provisioned shard, or the shard could not be registered.
type TransferError struct {
	Handle string
	err    error
}

// NewTransferError constructs a new transfer error.
func NewTransferError(handle string, err error) TransferError {
	return TransferError{Handle: handle, err: err}
}

func (e TransferError) Error() string {
	return fmt.Sprintf("transfer to shard %s failed: %s", e.Handle, e.err)
}

// Unwrap returns the underlying error.
func (e TransferError) Unwrap() error {
	return e.err
}

// Is returns true if the target is a transfer error.
func (e TransferError) Is(target error) bool {
	_, ok := target.(TransferError)
	return ok
}
