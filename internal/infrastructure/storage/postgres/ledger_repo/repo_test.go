package ledger_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/core/id"
	"sheetstock/internal/domain/ledger"
)

func TestListTransactionsQuery_KeysetPage(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	cursor := ledger.Cursor{Date: from, ID: id.New()}

	sql, args, err := listTransactionsQuery(ledger.TransactionFilter{
		PartyID: id.New(),
		From:    &from,
		To:      &to,
		After:   &cursor,
		Limit:   50,
	}).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(sql,
		"FROM ledger_transactions WHERE party_id = $1 AND date >= $2 AND date <= $3 AND (date, id) > ($4, $5) ORDER BY date, id LIMIT 50"))
	assert.Len(t, args, 5)
	assert.Equal(t, from, args[1])
	assert.Equal(t, to, args[2])
}

func TestListPartiesQuery(t *testing.T) {
	sql, args, err := listPartiesQuery(ledger.PartyFilter{Kind: ledger.KindSupplier, Search: "steel"}).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "FROM parties WHERE kind = $1 AND is_active = $2 AND name ILIKE $3 ORDER BY name, id"))
	assert.Equal(t, []any{ledger.KindSupplier, true, "%steel%"}, args)

	sql, args, err = listPartiesQuery(ledger.PartyFilter{IncludeInactive: true}).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "FROM parties ORDER BY name, id"))
	assert.Empty(t, args)
}
