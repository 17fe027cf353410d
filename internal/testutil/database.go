package testutil

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb" // registers the duckdb driver
	"github.com/stretchr/testify/require"
)

// OrderRow is one seeded row of the orders table
type OrderRow struct {
	ID        int64
	Customer  string
	Amount    float64
	Quantity  int64
	CreatedAt time.Time
	Status    string
	Region    string
	Paid      bool
}

// SeedOrders are the rows written by NewOrdersDB. Exactly two have an
// amount over 100.
var SeedOrders = []OrderRow{
	{1, "alice", 50, 1, time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC), "shipped", "north", true},
	{2, "bob", 150, 3, time.Date(2024, time.May, 20, 14, 30, 0, 0, time.UTC), "pending", "south", false},
	{3, "carol", 200, 2, time.Date(2024, time.June, 3, 11, 15, 0, 0, time.UTC), "shipped", "north", true},
	{4, "dave", 75.5, 5, time.Date(2024, time.June, 10, 16, 45, 0, 0, time.UTC), "cancelled", "east", false},
	{5, "erin_100%", 99.99, 1, time.Date(2023, time.December, 24, 8, 0, 0, 0, time.UTC), "shipped", "west", true},
}

const ordersDDL = `CREATE TABLE orders (
	id BIGINT PRIMARY KEY,
	customer VARCHAR NOT NULL,
	amount DOUBLE NOT NULL,
	quantity BIGINT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	order_status VARCHAR NOT NULL,
	region VARCHAR NOT NULL,
	paid BOOLEAN NOT NULL,
	notes VARCHAR
)`

// NewOrdersDB opens an in-memory DuckDB seeded with SeedOrders. The
// database is closed when the test ends.
func NewOrdersDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(ordersDDL)
	require.NoError(t, err)

	for _, r := range SeedOrders {
		_, err := db.Exec(
			`INSERT INTO orders (id, customer, amount, quantity, created_at, order_status, region, paid) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Customer, r.Amount, r.Quantity, r.CreatedAt, r.Status, r.Region, r.Paid,
		)
		require.NoError(t, err)
	}

	return db
}
