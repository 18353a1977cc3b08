package memory_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/infrastructure/storage/memory"
)

func party(name string) *ledger.Party {
	return &ledger.Party{
		ID:        id.New(),
		Kind:      ledger.KindCustomer,
		Name:      name,
		Balance:   types.Zero(),
		IsActive:  true,
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunInTransaction_RollbackRestoresData(t *testing.T) {
	store := memory.New()
	repo := memory.NewLedgerRepo(store)
	ctx := context.Background()

	kept := party("kept")
	require.NoError(t, repo.CreateParty(ctx, kept))

	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		require.True(t, store.InTransaction(ctx))
		require.NoError(t, repo.CreateParty(ctx, party("lost")))
		require.NoError(t, repo.UpdateBalance(ctx, kept.ID, types.MustMoney("42")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	parties, err := repo.ListParties(ctx, ledger.PartyFilter{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, "kept", parties[0].Name)
	assert.True(t, parties[0].Balance.IsZero())
}

func TestBegin_NestedJoinsOuter(t *testing.T) {
	store := memory.New()
	repo := memory.NewLedgerRepo(store)
	ctx := context.Background()

	outerCtx, outer, err := store.Begin(ctx)
	require.NoError(t, err)

	innerCtx, inner, err := store.Begin(outerCtx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateParty(innerCtx, party("inner")))
	require.NoError(t, inner.Commit(innerCtx))

	// Inner commit is a no-op; the outer rollback discards its write.
	require.NoError(t, outer.Rollback(outerCtx))
	require.NoError(t, outer.Rollback(outerCtx), "rollback twice is a no-op")

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Parties)
	assert.False(t, store.InTransaction(outerCtx))
}

func TestBegin_CancelledContext(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_DurableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheetstock.db")
	ctx := context.Background()

	store, err := memory.Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	p := party("Acme")
	require.NoError(t, memory.NewLedgerRepo(store).CreateParty(ctx, p))
	n, err := store.NextValue(ctx, "SAL_2026", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reopened, err := memory.Open(path)
	require.NoError(t, err)
	got, err := memory.NewLedgerRepo(reopened).GetParty(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	n, err = reopened.NextValue(ctx, "SAL_2026", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCommit_SaveFailureRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "sheetstock.db")
	store, err := memory.Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	err = memory.NewLedgerRepo(store).CreateParty(ctx, party("Acme"))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodePersistence))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Parties)
}

func TestSequencer(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	v, err := store.NextValue(ctx, "SAL_2026", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)

	v, err = store.NextValue(ctx, "SAL_2026", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(51), v)

	v, err = store.NextValue(ctx, "SAL_2027", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestLedgerRepo_TransactionWindow(t *testing.T) {
	store := memory.New()
	repo := memory.NewLedgerRepo(store)
	ctx := context.Background()

	p := party("Acme")
	require.NoError(t, repo.CreateParty(ctx, p))
	ref := id.New()
	for day := 1; day <= 4; day++ {
		require.NoError(t, repo.InsertTransaction(ctx, &ledger.Transaction{
			ID:          id.New(),
			PartyID:     p.ID,
			Type:        ledger.TypeSale,
			Amount:      types.MustMoney("10"),
			Date:        time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
			ReferenceID: &ref,
		}))
	}

	from := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	got, err := repo.ListTransactions(ctx, ledger.TransactionFilter{PartyID: p.ID, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 2, "bounds are inclusive")
	assert.True(t, got[0].Date.Equal(from))

	got, err = repo.ListTransactions(ctx, ledger.TransactionFilter{PartyID: p.ID, ReferenceID: &ref, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
