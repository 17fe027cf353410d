package main

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/logging"
)

const batchSize = 200

type seedOptions struct {
	Driver  string
	DSN     string
	Rows    int
	Seed    uint64
	Replace bool
}

var (
	firstNames = []string{"Asha", "Ravi", "Meera", "Arjun", "Priya", "Vikram", "Nisha", "Karan", "Divya", "Sanjay", "Leela", "Omar"}
	lastNames  = []string{"Rao", "Iyer", "Shah", "Menon", "Gupta", "Khan", "Nair", "Das", "Pillai", "Joshi"}
	places     = []string{"Andheri", "Bandra", "Chembur", "Dadar", "Kurla", "Powai", "Thane", "Vashi"}
)

var sqlTypes = map[catalog.LogicalType]string{
	catalog.TypeText:      "VARCHAR",
	catalog.TypeInteger:   "BIGINT",
	catalog.TypeDecimal:   "DOUBLE",
	catalog.TypeTimestamp: "TIMESTAMP",
	catalog.TypeBoolean:   "BOOLEAN",
}

// createTableSQL renders the DDL for the catalog's table
func createTableSQL(cat *catalog.Catalog) string {
	cols := cat.Columns()
	defs := make([]string, len(cols))

	for i, col := range cols {
		defs[i] = fmt.Sprintf("%s %s", col.Name, sqlTypes[col.Type])
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", cat.TableName(), strings.Join(defs, ", "))
}

func insertSQL(cat *catalog.Catalog) string {
	cols := cat.Columns()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))

	for i, col := range cols {
		names[i] = col.Name
		marks[i] = "?"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", cat.TableName(), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// rowGenerator produces the same rows for the same seed
type rowGenerator struct {
	rng  *rand.Rand
	cols []catalog.Column
	base time.Time
}

func newRowGenerator(cat *catalog.Catalog, seed uint64) *rowGenerator {
	return &rowGenerator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cols: cat.Columns(),
		base: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *rowGenerator) row(i int) []any {
	values := make([]any, len(g.cols))

	textSeen := 0

	for c, col := range g.cols {
		switch col.Type {
		case catalog.TypeInteger:
			if col.Pattern != "" {
				values[c] = int64(100000000000 + i*7919)
			} else {
				values[c] = int64(g.rng.IntN(40) + 1)
			}
		case catalog.TypeDecimal:
			values[c] = math.Round(g.rng.Float64()*250000) / 100
		case catalog.TypeTimestamp:
			values[c] = g.base.Add(time.Duration(g.rng.IntN(365*24)) * time.Hour)
		case catalog.TypeBoolean:
			values[c] = g.rng.IntN(2) == 1
		default:
			if textSeen == 0 {
				values[c] = firstNames[g.rng.IntN(len(firstNames))] + " " + lastNames[g.rng.IntN(len(lastNames))]
			} else {
				values[c] = places[g.rng.IntN(len(places))]
			}

			textSeen++
		}
	}

	return values
}

// seed creates the table and inserts opts.Rows rows in batches, returning
// the number written
func seed(ctx context.Context, cat *catalog.Catalog, opts seedOptions, logger *logging.Logger) (int, error) {
	if opts.Driver != "duckdb" && opts.Driver != "sqlite3" {
		return 0, errors.Newf(errors.ErrTypeValidation, "unsupported driver %q (must be duckdb or sqlite3)", opts.Driver)
	}

	if opts.Rows < 0 {
		return 0, errors.New(errors.ErrTypeValidation, "rows must not be negative")
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open database")
	}
	defer db.Close()

	if opts.Replace {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+cat.TableName()); err != nil {
			return 0, errors.Wrap(err, errors.ErrTypeDatabase, "failed to drop table")
		}
	}

	if _, err := db.ExecContext(ctx, createTableSQL(cat)); err != nil {
		return 0, errors.Wrap(err, errors.ErrTypeDatabase, "failed to create table").
			WithSuggestion("pass --replace to recreate an existing table")
	}

	gen := newRowGenerator(cat, opts.Seed)
	stmt := insertSQL(cat)
	written := 0

	for written < opts.Rows {
		n := min(batchSize, opts.Rows-written)

		if err := insertBatch(ctx, db, stmt, gen, written, n); err != nil {
			return written, err
		}

		written += n
		logger.WithField("rows", written).Debug("batch committed")
	}

	return written, nil
}

func insertBatch(ctx context.Context, db *sql.DB, stmt string, gen *rowGenerator, offset, n int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for i := range n {
		if _, err := tx.ExecContext(ctx, stmt, gen.row(offset+i)...); err != nil {
			return errors.Wrapf(err, errors.ErrTypeDatabase, "failed to insert row %d", offset+i+1)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to commit batch")
	}

	return nil
}
