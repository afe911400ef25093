// Package ledger is the inventory façade: every exported operation runs as a
// single unit of work that validates state and permissions, writes item rows
// and audit entries, and resynchronizes aggregate counts before committing.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/metrics"
	"github.com/acdb/stockroom/internal/model"
	"github.com/acdb/stockroom/internal/store"
)

// Options tunes a Ledger. Zero values select defaults.
type Options struct {
	// TxTimeout bounds a single transaction attempt.
	TxTimeout time.Duration
	// MaxRetries is how many times a conflicting transaction is retried.
	MaxRetries int
	// RetryBackoff is the base delay between retries; attempt n waits n times
	// this value.
	RetryBackoff time.Duration

	Metrics metrics.Recorder
	Logger  *slog.Logger
	Now     func() time.Time
}

// Ledger executes inventory operations against a store.
type Ledger struct {
	db *db.DB

	txTimeout  time.Duration
	maxRetries int
	backoff    time.Duration
	metrics    metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Ledger over database. The caller owns the database handle.
func New(database *db.DB, opts Options) *Ledger {
	l := &Ledger{
		db:         database,
		txTimeout:  opts.TxTimeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if l.txTimeout <= 0 {
		l.txTimeout = 5 * time.Second
	}
	if l.maxRetries < 0 {
		l.maxRetries = 0
	}
	if l.backoff <= 0 {
		l.backoff = 50 * time.Millisecond
	}
	if l.metrics == nil {
		l.metrics = metrics.Nop{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

func (l *Ledger) nowMillis() int64 {
	return l.now().UnixMilli()
}

// runTx runs fn in a transaction, retrying bounded times on conflicts. The
// returned error is always a *model.Error or nil.
func (l *Ledger) runTx(ctx context.Context, op string, fn func(ctx context.Context, tx *db.Tx) error) error {
	start := time.Now()

	var err error
	for attempt := 0; ; attempt++ {
		err = l.attempt(ctx, fn)
		if err == nil || !retryable(err) || attempt >= l.maxRetries {
			break
		}

		l.metrics.RecordRetry(op)
		l.logger.Debug("retrying transaction", "operation", op, "attempt", attempt+1, "error", err)

		wait := time.NewTimer(l.backoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			wait.Stop()
			err = ctx.Err()
		case <-wait.C:
			continue
		}
		break
	}

	err = classify(ctx, err)
	l.metrics.RecordOperation(op, outcome(err), time.Since(start))
	switch model.KindOf(err) {
	case model.KindStoreUnavailable:
		l.logger.Error("ledger operation failed", "operation", op, "error", err)
	case model.KindCanceled:
		l.logger.Debug("ledger operation canceled", "operation", op, "error", err)
	}
	return err
}

func (l *Ledger) attempt(ctx context.Context, fn func(ctx context.Context, tx *db.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, l.txTimeout)
	defer cancel()

	err := l.db.InTx(txCtx, func(tx *db.Tx) error {
		return fn(txCtx, tx)
	})
	if err != nil && ctx.Err() == nil && errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return model.WrapError(model.KindConflict, "the inventory is busy, please try again", err)
	}
	return err
}

// read classifies errors from a query outside a transaction.
func (l *Ledger) read(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	err = classify(ctx, err)
	if model.KindOf(err) == model.KindStoreUnavailable {
		l.logger.Error("ledger query failed", "operation", op, "error", err)
	}
	return err
}

func retryable(err error) bool {
	return model.KindOf(err) == model.KindConflict || db.IsConflict(err)
}

// classify maps err to a *model.Error. Failures after the caller's context
// is done are reported as Canceled whatever the driver returned.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if model.KindOf(err) != "" {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.WrapError(model.KindCanceled, "the request was canceled", err)
	}
	if db.IsConflict(err) {
		return model.WrapError(model.KindConflict, "the inventory is busy, please try again", err)
	}
	return model.WrapError(model.KindStoreUnavailable, "storage is unavailable", err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := model.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// requireMember loads a member or fails with NotFound.
func requireMember(ctx context.Context, q db.Querier, userID string) (*model.Member, error) {
	m, err := store.GetMember(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, model.Errorf(model.KindNotFound, "member %s not found", userID)
	}
	return m, nil
}

// requireAdmin loads a member and rejects non-admins.
func requireAdmin(ctx context.Context, q db.Querier, userID string) (*model.Member, error) {
	m, err := requireMember(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin {
		return nil, model.Errorf(model.KindPermissionDenied, "only admins can do that")
	}
	return m, nil
}
