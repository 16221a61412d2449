package xcontext

import (
	"context"

	"github.com/rafflehub/backend/config"
	"github.com/rafflehub/backend/pkg/logger"
	"gorm.io/gorm"
)

type (
	configsKey struct{}
	loggerKey  struct{}
	dbKey      struct{}
	txKey      struct{}
	userIDKey  struct{}
)

type txHolder struct {
	tx   *gorm.DB
	done bool

	// depth counts nested WithDBTransaction calls sharing this transaction;
	// skip counts inner commits whose paired deferred rollback must be a
	// no-op. Only the outermost commit touches the database.
	depth int
	skip  int
}

func WithConfigs(ctx context.Context, cfg config.Configs) context.Context {
	return context.WithValue(ctx, configsKey{}, cfg)
}

func Configs(ctx context.Context) config.Configs {
	cfg, ok := ctx.Value(configsKey{}).(config.Configs)
	if !ok {
		panic("no configs in context")
	}

	return cfg
}

func WithLogger(ctx context.Context, l logger.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func Logger(ctx context.Context) logger.Logger {
	l, ok := ctx.Value(loggerKey{}).(logger.Logger)
	if !ok {
		return logger.NewLogger(logger.INFO)
	}

	return l
}

func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}

// DB returns the current database handle. If a transaction was opened on this
// context by WithDBTransaction, the transaction is returned instead.
func DB(ctx context.Context) *gorm.DB {
	if holder, ok := ctx.Value(txKey{}).(*txHolder); ok && !holder.done {
		return holder.tx
	}

	db, ok := ctx.Value(dbKey{}).(*gorm.DB)
	if !ok {
		panic("no database in context")
	}

	return db
}

// WithDBTransaction begins a database transaction and attaches it to the
// returned context. Nested calls join the outer transaction; their commit is
// deferred until the outermost caller commits, and any inner rollback aborts
// the whole transaction.
func WithDBTransaction(ctx context.Context) context.Context {
	if holder, ok := ctx.Value(txKey{}).(*txHolder); ok && !holder.done {
		holder.depth++
		return ctx
	}

	return context.WithValue(ctx, txKey{}, &txHolder{tx: DB(ctx).Begin(), depth: 1})
}

// WithCommitDBTransaction commits the transaction of this context if it is
// still open. A deferred WithRollbackDBTransaction after a commit is a no-op.
func WithCommitDBTransaction(ctx context.Context) context.Context {
	holder, ok := ctx.Value(txKey{}).(*txHolder)
	if !ok || holder.done {
		return ctx
	}

	if holder.depth > 1 {
		holder.skip++
		return ctx
	}

	holder.tx.Commit()
	holder.done = true
	return ctx
}

func WithRollbackDBTransaction(ctx context.Context) context.Context {
	holder, ok := ctx.Value(txKey{}).(*txHolder)
	if !ok || holder.done {
		return ctx
	}

	if holder.skip > 0 {
		holder.skip--
		holder.depth--
		return ctx
	}

	holder.tx.Rollback()
	holder.done = true
	return ctx
}

func WithRequestUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func RequestUserID(ctx context.Context) string {
	id, ok := ctx.Value(userIDKey{}).(string)
	if !ok {
		return ""
	}

	return id
}
