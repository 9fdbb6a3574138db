package database

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned by Commit and Rollback on a context that was
// not produced by Begin.
var ErrNoTransaction = errors.New("no transaction in context")

type scopeKey struct{}

// scope ties a context to a transaction. Only the outermost Begin owns the
// transaction; inner scopes join it and leave completion to the owner.
type scope struct {
	tx    Transaction
	depth int
}

func (s *scope) owner() bool { return s.depth == 0 }

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	if s == nil || s.tx == nil {
		return nil
	}
	return s
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	return scopeFrom(ctx) != nil
}

// ExecutorFromContext returns the transaction carried by ctx, or conn when
// there is none. Repositories call it on every statement so they take part
// in whatever unit of work the caller opened.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if s := scopeFrom(ctx); s != nil {
		return s.tx
	}
	return conn
}

// UnitOfWork implements application.UnitOfWork on a Connection.
type UnitOfWork struct {
	conn Connection
}

// NewUnitOfWork creates a unit of work on conn.
func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Begin opens a transaction, or joins the one already carried by ctx.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if outer := scopeFrom(ctx); outer != nil {
		return context.WithValue(ctx, scopeKey{}, &scope{tx: outer.tx, depth: outer.depth + 1}), nil
	}

	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, scopeKey{}, &scope{tx: tx}), nil
}

// Commit commits when ctx is the outermost scope and is a no-op otherwise.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	return u.finish(ctx, Transaction.Commit)
}

// Rollback rolls back when ctx is the outermost scope and is a no-op
// otherwise. A joined scope that fails returns its error to the owner, which
// rolls back the whole transaction.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	return u.finish(ctx, Transaction.Rollback)
}

func (u *UnitOfWork) finish(ctx context.Context, end func(Transaction, context.Context) error) error {
	s := scopeFrom(ctx)
	if s == nil {
		return ErrNoTransaction
	}
	if !s.owner() {
		return nil
	}
	return end(s.tx, ctx)
}
