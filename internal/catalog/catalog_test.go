package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/errors"
)

func ordersTable() Table {
	return Table{
		Name:     "orders",
		Synonyms: []string{"orders", "purchases"},
		Columns: []Column{
			{Name: "id", Type: TypeInteger, Filterable: true, Sortable: true},
			{Name: "customer", Type: TypeText, Synonyms: []string{"client"}, Filterable: true, Sortable: true},
			{Name: "amount", Type: TypeDecimal, Synonyms: []string{"price", "value"}, Filterable: true, Sortable: true},
			{Name: "quantity", Type: TypeInteger, Synonyms: []string{"qty", "value"}, Filterable: true, Sortable: true},
			{Name: "created_at", Type: TypeTimestamp, Synonyms: []string{"date", "order date"}, Filterable: true, Sortable: true},
		},
		DefaultColumns: []string{"id", "customer", "amount"},
		PrimaryOrder:   &OrderSpec{Column: "id"},
		MeasureColumn:  "amount",
		TimeColumn:     "created_at",
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()

	assert.Equal(t, "ccod_bal", c.TableName())
	assert.Equal(t, "currentbalance", c.MeasureColumn())
	assert.Empty(t, c.TimeColumn())

	po, ok := c.PrimaryOrder()
	require.True(t, ok)
	assert.Equal(t, OrderSpec{Column: "accountno", Direction: "asc"}, po)
}

func TestResolve(t *testing.T) {
	c, err := New(ordersTable())
	require.NoError(t, err)

	tests := []struct {
		phrase string
		want   []string
	}{
		{"amount", []string{"amount"}},
		{"Price", []string{"amount"}},
		{"prices", nil},
		{"order date", []string{"created_at"}},
		{"created at", []string{"created_at"}},
		{"created_at", []string{"created_at"}},
		{"value", []string{"amount", "quantity"}},
		{"colour", nil},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Resolve(tt.phrase))
		})
	}
}

func TestResolveExactNameOutranksSynonym(t *testing.T) {
	table := ordersTable()
	table.Columns[1].Synonyms = append(table.Columns[1].Synonyms, "amount")

	c, err := New(table)
	require.NoError(t, err)

	assert.Equal(t, []string{"amount"}, c.Resolve("amount"))
}

func TestTableTermsAndPatterns(t *testing.T) {
	c := Default()

	assert.True(t, c.IsTableTerm("accounts"))
	assert.True(t, c.IsTableTerm("ccod_bal"))
	assert.False(t, c.IsTableTerm("balance"))

	col, ok := c.MatchPattern("1234567890")
	require.True(t, ok)
	assert.Equal(t, "accountno", col)

	_, ok = c.MatchPattern("12345")
	assert.False(t, ok)
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Table)
	}{
		{"bad table name", func(t *Table) { t.Name = "orders; drop" }},
		{"no columns", func(t *Table) { t.Columns = nil }},
		{"quoted column", func(t *Table) { t.Columns[0].Name = `"id"` }},
		{"duplicate column", func(t *Table) { t.Columns[1].Name = "id" }},
		{"unknown type", func(t *Table) { t.Columns[0].Type = "money" }},
		{"missing default column", func(t *Table) { t.DefaultColumns = []string{"nope"} }},
		{"unsortable primary order", func(t *Table) { t.Columns[0].Sortable = false }},
		{"bad direction", func(t *Table) { t.PrimaryOrder = &OrderSpec{Column: "id", Direction: "sideways"} }},
		{"text measure", func(t *Table) { t.MeasureColumn = "customer" }},
		{"numeric time column", func(t *Table) { t.TimeColumn = "amount" }},
		{"bad pattern", func(t *Table) { t.Columns[0].Pattern = "([" }},
		{"keyword table name", func(t *Table) { t.Name = "select" }},
		{"keyword column order", func(t *Table) { t.Columns[1].Name = "order" }},
		{"keyword column key", func(t *Table) { t.Columns[1].Name = "key" }},
		{"keyword column limit", func(t *Table) { t.Columns[1].Name = "limit" }},
		{"keyword column group", func(t *Table) { t.Columns[1].Name = "group" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := ordersTable()
			tt.modify(&table)

			_, err := New(table)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeCatalog))
		})
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	table := ordersTable()
	c, err := New(table)
	require.NoError(t, err)

	table.Columns[0].Name = "mutated"
	cols := c.Columns()
	cols[1].Name = "mutated"

	_, ok := c.Column("id")
	assert.True(t, ok)
	assert.Equal(t, "customer", c.Columns()[1].Name)
}

func TestDefaultColumnsFallBackToAll(t *testing.T) {
	table := ordersTable()
	table.DefaultColumns = nil

	c, err := New(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer", "amount", "quantity", "created_at"}, c.DefaultColumns())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "orders",
		"columns": [
			{"name": "id", "type": "integer", "filterable": true, "sortable": true},
			{"name": "amount", "type": "decimal", "synonyms": ["total"], "filterable": true, "sortable": true}
		],
		"primary_order": {"column": "id", "direction": "DESC"},
		"measure_column": "amount"
	}`), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", c.TableName())
	assert.Equal(t, []string{"amount"}, c.Resolve("total"))

	po, _ := c.PrimaryOrder()
	assert.Equal(t, "desc", po.Direction)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	out := Default().Describe()

	assert.Contains(t, out, "Table ccod_bal")
	assert.Contains(t, out, "currentbalance")
	assert.Contains(t, out, "balance")
}
