package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnknownPlan         = errors.New("unknown plan id")
	ErrConcurrencyConflict = errors.New("concurrent ledger update")
	ErrNegativeBalance     = errors.New("negative balance detected")

	// Infrastructure errors surfaced through repository ports.
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
