package iop

import "errors"

var (
	// ErrParamMissing is returned when a parameter index is out of range.
	ErrParamMissing = errors.New("parameter missing")

	// ErrParamTaken is returned when a parameter is taken a second time.
	ErrParamTaken = errors.New("parameter already taken")

	// ErrNoResource is returned by TakeRsrc when the context holds no resource.
	ErrNoResource = errors.New("no resource in context")

	// ErrNoResourceSlot is returned by InitRsrc when the context was created
	// without a resource id.
	ErrNoResourceSlot = errors.New("context has no resource slot")

	// ErrResourceOccupied is returned by InitRsrc when the slot is already filled.
	ErrResourceOccupied = errors.New("resource slot occupied")

	// ErrResourceLost is returned by the Driver when a future reports
	// not-ready without moving its resource back into the context.
	ErrResourceLost = errors.New("resource lost by pending operation")

	// ErrWrongResource is returned when a resource of an unexpected kind is taken.
	ErrWrongResource = errors.New("wrong resource kind")
)
