package models

import "errors"

// Sentinel errors shared across repositories and services. The RPC layer
// maps these onto gRPC status codes.
var (
	// ErrNotFound: unknown workflow version, execution or task id
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument: IR parse failures, cycles, unknown node types
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFailedPrecondition: completing or failing a task that is not
	// currently LEASED (the lease expired and another claim may exist)
	ErrFailedPrecondition = errors.New("failed precondition")

	// ErrDataLoss: blob content does not match its recorded sha256
	ErrDataLoss = errors.New("data loss")
)
