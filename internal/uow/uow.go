package uow

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/salonq/internal/repository"
	postgresrepo "github.com/kirinyoku/salonq/internal/repository/postgres"
)

// maxAttempts bounds how often a transaction aborted by a deadlock or a
// serialization failure is run again.
const maxAttempts = 3

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// Func is the body of a unit of work. Hooks registered through after run
// only once the transaction has committed.
type Func func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error

// UoW represents a unit of work.
type UoW struct {
	store *postgresrepo.Store
}

func NewUoW(store *postgresrepo.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(ctx context.Context, fn Func) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside a transaction with the given options. A
// transaction that fails with a retryable database error is run again from
// scratch, up to maxAttempts times; hooks of failed attempts are discarded.
func (u *UoW) DoWithOpts(ctx context.Context, opts *pgx.TxOptions, fn Func) error {
	var (
		hooks []AfterCommit
		err   error
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		hooks = hooks[:0]

		err = u.store.RunTx(ctx, opts, func(ctx context.Context, db postgresrepo.DB) error {
			tx := repository.Tx{
				Tickets: u.store.Tickets().With(db),
				Salons:  u.store.Salons().With(db),
			}
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil || !postgresrepo.IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
