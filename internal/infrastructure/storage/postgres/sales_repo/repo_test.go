package sales_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetstock/internal/core/id"
	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/sales"
)

func TestInsertQueries(t *testing.T) {
	saleID := id.New()
	sheetID := id.New()
	sale := &sales.Sale{
		ID:     saleID,
		Number: "SAL-2026-00001",
		Date:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []sales.SaleItem{
			{
				ID: id.New(), SaleID: saleID, LineNo: 1, Kind: sales.KindMaterial, SheetID: &sheetID,
				Quantity: types.NewQuantity(7),
				Allocations: []sales.ItemAllocation{
					{BatchID: id.New(), Quantity: types.NewQuantity(5), UnitCost: types.MustMoney("20"), CostKnown: true},
					{BatchID: id.New(), Quantity: types.NewQuantity(2), UnitCost: types.MustMoney("30"), CostKnown: true},
				},
			},
			{ID: id.New(), SaleID: saleID, LineNo: 2, Kind: sales.KindService, ServiceType: "cutting", Quantity: types.NewQuantity(1)},
		},
	}

	queries, err := insertQueries(sale)
	require.NoError(t, err)
	require.Len(t, queries, 4, "sale, two lines, one allocation insert")

	assert.True(t, strings.HasPrefix(queries[0].SQL, "INSERT INTO sales "))
	assert.True(t, strings.HasPrefix(queries[1].SQL, "INSERT INTO sale_items "))
	assert.Equal(t,
		"INSERT INTO sale_item_allocations (item_id,position,batch_id,quantity,unit_cost,cost_known) VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12)",
		queries[2].SQL)
	assert.Len(t, queries[2].Args, 12)
	assert.Equal(t, 1, queries[2].Args[7], "second portion keeps its position")
	assert.True(t, strings.HasPrefix(queries[3].SQL, "INSERT INTO sale_items "))
}

func TestListSalesQuery(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	customer := id.New()

	sql, args, err := listSalesQuery(sales.Filter{From: &from, CustomerID: &customer, Limit: 20}).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "FROM sales WHERE date >= $1 AND customer_id = $2 ORDER BY date, id LIMIT 20"))
	assert.Len(t, args, 2)
}
