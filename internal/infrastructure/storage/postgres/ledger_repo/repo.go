// Package ledger_repo is the PostgreSQL implementation of ledger.Repository.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/infrastructure/storage/postgres"
)

const (
	tableParties      = "parties"
	tableTransactions = "ledger_transactions"
)

var (
	partyCols = postgres.ExtractDBColumns[ledger.Party]()
	txCols    = postgres.ExtractDBColumns[ledger.Transaction]()
)

// Repo implements ledger.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ ledger.Repository = (*Repo)(nil)

// New creates the repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func (r *Repo) exec(ctx context.Context, op string, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(op, err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) CreateParty(ctx context.Context, p *ledger.Party) error {
	_, err := r.exec(ctx, "insert party", postgres.Builder().Insert(tableParties).SetMap(postgres.StructToMap(p)))
	return err
}

// UpdateParty never writes balance, kind or created_at.
func (r *Repo) UpdateParty(ctx context.Context, p *ledger.Party) error {
	q := postgres.Builder().
		Update(tableParties).
		SetMap(postgres.StructToMap(p, "id", "kind", "balance", "created_at")).
		Where(squirrel.Eq{"id": p.ID})
	n, err := r.exec(ctx, "update party", q)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewPartyNotFound(p.ID)
	}
	return nil
}

func (r *Repo) GetParty(ctx context.Context, partyID id.ID, forUpdate bool) (*ledger.Party, error) {
	q := postgres.Builder().Select(partyCols...).From(tableParties).Where(squirrel.Eq{"id": partyID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p ledger.Party
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewPartyNotFound(partyID)
		}
		return nil, fmt.Errorf("get party: %w", err)
	}
	return &p, nil
}

func listPartiesQuery(filter ledger.PartyFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(partyCols...).From(tableParties).OrderBy("name", "id")
	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if !filter.IncludeInactive {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	return q
}

func (r *Repo) ListParties(ctx context.Context, filter ledger.PartyFilter) ([]ledger.Party, error) {
	sql, args, err := listPartiesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []ledger.Party
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	return out, nil
}

func (r *Repo) UpdateBalance(ctx context.Context, partyID id.ID, balance types.Money) error {
	q := postgres.Builder().
		Update(tableParties).
		Set("balance", balance).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": partyID})
	n, err := r.exec(ctx, "update balance", q)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewPartyNotFound(partyID)
	}
	return nil
}

func (r *Repo) InsertTransaction(ctx context.Context, t *ledger.Transaction) error {
	_, err := r.exec(ctx, "insert transaction", postgres.Builder().Insert(tableTransactions).SetMap(postgres.StructToMap(t)))
	return err
}

func (r *Repo) UpdateBalanceAfter(ctx context.Context, txID id.ID, balanceAfter types.Money) error {
	q := postgres.Builder().
		Update(tableTransactions).
		Set("balance_after", balanceAfter).
		Where(squirrel.Eq{"id": txID})
	n, err := r.exec(ctx, "update balance_after", q)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("transaction", txID)
	}
	return nil
}

// before is the keyset predicate (date, id) < (pos.Date, pos.ID).
func before(pos ledger.Cursor) squirrel.Sqlizer {
	return squirrel.Expr("(date, id) < (?, ?)", pos.Date, pos.ID)
}

func after(pos ledger.Cursor) squirrel.Sqlizer {
	return squirrel.Expr("(date, id) > (?, ?)", pos.Date, pos.ID)
}

func (r *Repo) LastTransactionBefore(ctx context.Context, partyID id.ID, pos ledger.Cursor) (*ledger.Transaction, error) {
	sql, args, err := postgres.Builder().
		Select(txCols...).
		From(tableTransactions).
		Where(squirrel.Eq{"party_id": partyID}).
		Where(before(pos)).
		OrderBy("date DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var t ledger.Transaction
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last transaction: %w", err)
	}
	return &t, nil
}

func listTransactionsQuery(filter ledger.TransactionFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(txCols...).
		From(tableTransactions).
		Where(squirrel.Eq{"party_id": filter.PartyID}).
		OrderBy("date", "id")
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.To})
	}
	if filter.ReferenceID != nil {
		q = q.Where(squirrel.Eq{"reference_id": *filter.ReferenceID})
	}
	if filter.After != nil {
		q = q.Where(after(*filter.After))
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

func (r *Repo) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	sql, args, err := listTransactionsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []ledger.Transaction
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}
