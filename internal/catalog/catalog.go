// Package catalog holds the immutable description of the single queryable
// table: its columns, their logical types and the vocabulary users refer to
// them by.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"

	"github.com/kyleking/sqlassist/internal/errors"
)

// LogicalType is the engine-level type of a column, independent of the
// database's physical type.
type LogicalType string

const (
	TypeText      LogicalType = "text"
	TypeInteger   LogicalType = "integer"
	TypeDecimal   LogicalType = "decimal"
	TypeTimestamp LogicalType = "timestamp"
	TypeBoolean   LogicalType = "boolean"
)

// Valid reports whether t is a known logical type
func (t LogicalType) Valid() bool {
	switch t {
	case TypeText, TypeInteger, TypeDecimal, TypeTimestamp, TypeBoolean:
		return true
	default:
		return false
	}
}

// Numeric reports whether values of t support arithmetic aggregates
func (t LogicalType) Numeric() bool {
	return t == TypeInteger || t == TypeDecimal
}

// Ordered reports whether values of t support range comparisons
func (t LogicalType) Ordered() bool {
	return t.Numeric() || t == TypeTimestamp
}

// Column describes one column of the table
type Column struct {
	Name        string      `json:"name"`
	Type        LogicalType `json:"type"`
	Synonyms    []string    `json:"synonyms,omitempty"`
	Filterable  bool        `json:"filterable"`
	Sortable    bool        `json:"sortable"`
	Description string      `json:"description,omitempty"`
	// Pattern, when set, lets a bare value that matches it stand for an
	// equality filter on this column (e.g. a 12 digit account number).
	Pattern string `json:"pattern,omitempty"`
}

// OrderSpec is the natural ordering applied when the user asks for none
type OrderSpec struct {
	Column    string `json:"column"`
	Direction string `json:"direction"` // asc, desc
}

// Table is the static definition the catalog is built from
type Table struct {
	Name           string     `json:"name"`
	Synonyms       []string   `json:"synonyms,omitempty"`
	Columns        []Column   `json:"columns"`
	DefaultColumns []string   `json:"default_columns,omitempty"`
	PrimaryOrder   *OrderSpec `json:"primary_order,omitempty"`
	MeasureColumn  string     `json:"measure_column,omitempty"`
	TimeColumn     string     `json:"time_column,omitempty"`
}

type matchRank int

const (
	rankSynonym matchRank = iota + 1
	rankName
)

type termMatch struct {
	column string
	rank   matchRank
}

type patternColumn struct {
	column string
	re     *regexp.Regexp
}

// Catalog is the validated, read-only view of a Table. It is safe for
// concurrent use.
type Catalog struct {
	table        Table
	columns      map[string]Column
	terms        map[string][]termMatch
	tableTerms   map[string]bool
	patterns     []patternColumn
	maxTermWords int
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is a plain lower-case SQL identifier
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// reservedWord reports whether name cannot appear unquoted in the
// statements the compiler emits, as with "order", "key" or "limit"
func reservedWord(name string) bool {
	_, err := sqlparser.Parse(fmt.Sprintf("SELECT %[1]s FROM %[1]s WHERE %[1]s = 1 GROUP BY %[1]s ORDER BY %[1]s LIMIT 1", name))
	return err != nil
}

// New validates t and builds its lookup tables
func New(t Table) (*Catalog, error) {
	if !ValidIdentifier(t.Name) {
		return nil, errors.Newf(errors.ErrTypeCatalog, "invalid table name %q", t.Name)
	}

	if reservedWord(t.Name) {
		return nil, errors.Newf(errors.ErrTypeCatalog, "table name %q is a reserved SQL word", t.Name).
			WithSuggestion("rename the table or expose it through a view")
	}

	if len(t.Columns) == 0 {
		return nil, errors.Newf(errors.ErrTypeCatalog, "table %s has no columns", t.Name)
	}

	c := &Catalog{
		table:      cloneTable(t),
		columns:    make(map[string]Column, len(t.Columns)),
		terms:      make(map[string][]termMatch),
		tableTerms: make(map[string]bool),
	}

	for _, col := range c.table.Columns {
		if !ValidIdentifier(col.Name) {
			return nil, errors.Newf(errors.ErrTypeCatalog, "invalid column name %q", col.Name)
		}

		if reservedWord(col.Name) {
			return nil, errors.Newf(errors.ErrTypeCatalog, "column name %q is a reserved SQL word", col.Name).
				WithSuggestion("rename the column or expose it through a view")
		}

		if _, dup := c.columns[col.Name]; dup {
			return nil, errors.Newf(errors.ErrTypeCatalog, "duplicate column %q", col.Name)
		}

		if !col.Type.Valid() {
			return nil, errors.Newf(errors.ErrTypeCatalog, "column %s has unknown type %q", col.Name, col.Type)
		}

		c.columns[col.Name] = col
		c.addTerm(col.Name, col.Name, rankName)
		c.addTerm(strings.ReplaceAll(col.Name, "_", " "), col.Name, rankName)

		for _, syn := range col.Synonyms {
			c.addTerm(syn, col.Name, rankSynonym)
		}

		if col.Pattern != "" {
			re, err := regexp.Compile(col.Pattern)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrTypeCatalog, "column %s has an invalid pattern", col.Name)
			}

			c.patterns = append(c.patterns, patternColumn{column: col.Name, re: re})
		}
	}

	c.tableTerms[normalizeTerm(t.Name)] = true
	for _, syn := range t.Synonyms {
		c.tableTerms[normalizeTerm(syn)] = true
	}

	if len(c.table.DefaultColumns) == 0 {
		for _, col := range c.table.Columns {
			c.table.DefaultColumns = append(c.table.DefaultColumns, col.Name)
		}
	}

	for _, name := range c.table.DefaultColumns {
		if _, ok := c.columns[name]; !ok {
			return nil, errors.Newf(errors.ErrTypeCatalog, "default column %q is not defined", name)
		}
	}

	if err := c.validateRoles(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Catalog) validateRoles() error {
	if po := c.table.PrimaryOrder; po != nil {
		col, ok := c.columns[po.Column]
		if !ok || !col.Sortable {
			return errors.Newf(errors.ErrTypeCatalog, "primary order column %q must be a sortable column", po.Column)
		}

		po.Direction = strings.ToLower(po.Direction)
		if po.Direction == "" {
			po.Direction = "asc"
		}

		if po.Direction != "asc" && po.Direction != "desc" {
			return errors.Newf(errors.ErrTypeCatalog, "primary order direction %q must be asc or desc", po.Direction)
		}
	}

	if m := c.table.MeasureColumn; m != "" {
		if col, ok := c.columns[m]; !ok || !col.Type.Numeric() {
			return errors.Newf(errors.ErrTypeCatalog, "measure column %q must be a numeric column", m)
		}
	}

	if tc := c.table.TimeColumn; tc != "" {
		if col, ok := c.columns[tc]; !ok || col.Type != TypeTimestamp {
			return errors.Newf(errors.ErrTypeCatalog, "time column %q must be a timestamp column", tc)
		}
	}

	return nil
}

func (c *Catalog) addTerm(term, column string, rank matchRank) {
	key := normalizeTerm(term)
	if key == "" {
		return
	}

	for i, m := range c.terms[key] {
		if m.column == column {
			if rank > m.rank {
				c.terms[key][i].rank = rank
			}

			return
		}
	}

	c.terms[key] = append(c.terms[key], termMatch{column: column, rank: rank})

	if n := len(strings.Fields(key)); n > c.maxTermWords {
		c.maxTermWords = n
	}
}

func normalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

func cloneTable(t Table) Table {
	out := t
	out.Synonyms = append([]string(nil), t.Synonyms...)
	out.DefaultColumns = append([]string(nil), t.DefaultColumns...)
	out.Columns = make([]Column, len(t.Columns))

	for i, col := range t.Columns {
		col.Synonyms = append([]string(nil), col.Synonyms...)
		out.Columns[i] = col
	}

	if t.PrimaryOrder != nil {
		po := *t.PrimaryOrder
		out.PrimaryOrder = &po
	}

	return out
}

// Load reads a JSON table definition from path
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCatalog, "failed to read catalog file")
	}

	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCatalog, "failed to parse catalog file")
	}

	return New(t)
}

// TableName returns the single table this catalog describes
func (c *Catalog) TableName() string {
	return c.table.Name
}

// Column looks up a column by its exact name
func (c *Catalog) Column(name string) (Column, bool) {
	col, ok := c.columns[name]
	return col, ok
}

// Columns returns every column in definition order
func (c *Catalog) Columns() []Column {
	return cloneTable(c.table).Columns
}

// DefaultColumns returns the display set used when no columns are requested
func (c *Catalog) DefaultColumns() []string {
	return append([]string(nil), c.table.DefaultColumns...)
}

// PrimaryOrder returns the natural ordering, if the table has one
func (c *Catalog) PrimaryOrder() (OrderSpec, bool) {
	if c.table.PrimaryOrder == nil {
		return OrderSpec{}, false
	}

	return *c.table.PrimaryOrder, true
}

// MeasureColumn is the column a bare numeric comparison applies to
func (c *Catalog) MeasureColumn() string {
	return c.table.MeasureColumn
}

// TimeColumn is the column a bare date phrase applies to
func (c *Catalog) TimeColumn() string {
	return c.table.TimeColumn
}

// MaxTermWords is the length in words of the longest known term
func (c *Catalog) MaxTermWords() int {
	return c.maxTermWords
}

// Resolve returns the columns a phrase refers to. Exact column names outrank
// synonyms; several columns at the top rank means the phrase is ambiguous.
func (c *Catalog) Resolve(phrase string) []string {
	matches := c.terms[normalizeTerm(phrase)]

	var (
		best matchRank
		out  []string
	)

	for _, m := range matches {
		switch {
		case m.rank > best:
			best = m.rank
			out = []string{m.column}
		case m.rank == best:
			out = append(out, m.column)
		}
	}

	sort.Strings(out)

	return out
}

// IsTableTerm reports whether phrase names the table itself ("orders",
// "accounts") rather than one of its columns.
func (c *Catalog) IsTableTerm(phrase string) bool {
	return c.tableTerms[normalizeTerm(phrase)]
}

// MatchPattern returns the column whose value pattern matches token
func (c *Catalog) MatchPattern(token string) (string, bool) {
	for _, p := range c.patterns {
		if p.re.MatchString(token) {
			return p.column, true
		}
	}

	return "", false
}

// Describe renders a short human-readable summary of the queryable columns
func (c *Catalog) Describe() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Table %s:\n", c.table.Name)

	for _, col := range c.table.Columns {
		fmt.Fprintf(&b, "  %-16s %-9s", col.Name, col.Type)

		if len(col.Synonyms) > 0 {
			fmt.Fprintf(&b, " (also: %s)", strings.Join(col.Synonyms, ", "))
		}

		if col.Description != "" {
			fmt.Fprintf(&b, " - %s", col.Description)
		}

		b.WriteString("\n")
	}

	return b.String()
}
