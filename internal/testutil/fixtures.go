package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/catalog"
)

// OrdersTable is a small order-book table. "value" is deliberately a
// synonym of both amount and quantity.
func OrdersTable() catalog.Table {
	return catalog.Table{
		Name:     OrdersTableName,
		Synonyms: []string{"orders", "purchases", "sales"},
		Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeInteger, Synonyms: []string{"order id", "order number"}, Filterable: true, Sortable: true},
			{Name: "customer", Type: catalog.TypeText, Synonyms: []string{"client", "buyer"}, Filterable: true, Sortable: true},
			{Name: "amount", Type: catalog.TypeDecimal, Synonyms: []string{"price", "value", "cost"}, Filterable: true, Sortable: true},
			{Name: "quantity", Type: catalog.TypeInteger, Synonyms: []string{"qty", "value", "units"}, Filterable: true, Sortable: true},
			{Name: "created_at", Type: catalog.TypeTimestamp, Synonyms: []string{"date", "order date", "created"}, Filterable: true, Sortable: true},
			{Name: "order_status", Type: catalog.TypeText, Synonyms: []string{"status", "state"}, Filterable: true, Sortable: true},
			{Name: "region", Type: catalog.TypeText, Synonyms: []string{"area"}, Filterable: true, Sortable: true},
			{Name: "paid", Type: catalog.TypeBoolean, Synonyms: []string{"settled"}, Filterable: true, Sortable: false},
			{Name: "notes", Type: catalog.TypeText, Filterable: false, Sortable: false},
		},
		DefaultColumns: []string{"id", "customer", "amount", "quantity", "created_at", "order_status"},
		PrimaryOrder:   &catalog.OrderSpec{Column: "id", Direction: "asc"},
		MeasureColumn:  "amount",
		TimeColumn:     "created_at",
	}
}

// OrdersCatalog builds the catalog for OrdersTable
func OrdersCatalog(t testing.TB) *catalog.Catalog {
	t.Helper()

	c, err := catalog.New(OrdersTable())
	require.NoError(t, err)

	return c
}
