package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying transaction handle via `tx`.
//
// - Keeps use-case interfaces clean (no transaction types leaking out).
// - Repository methods that accept `tx` detect the handle implementation-side
//   and run SELECT ... FOR UPDATE / tx-bound Exec/Query as needed.
// - Repositories MUST gracefully accept NoTX (non-transactional path).
//
// The concrete type of `tx` is infra-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
