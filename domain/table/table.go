package table

import (
	"fmt"
	"strconv"

	"gocause/internal/errors"
)

// Kind is the semantic type of a variable, inferred from its observed values.
type Kind int

const (
	Continuous Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "continuous"
}

// Column is a named, typed series of values. Categorical values are stored as
// level codes (index into Levels) so every column is numeric internally.
type Column struct {
	Name   string
	Kind   Kind
	Values []float64
	Levels []string
}

// Label returns the display value for the i-th entry.
func (c *Column) Label(i int) string {
	if c.Kind == Categorical {
		code := int(c.Values[i])
		if code >= 0 && code < len(c.Levels) {
			return c.Levels[code]
		}
		return fmt.Sprintf("level_%d", code)
	}
	return strconv.FormatFloat(c.Values[i], 'g', -1, 64)
}

// CodeOf resolves a categorical label to its level code, -1 if unknown.
func (c *Column) CodeOf(label string) int {
	for i, l := range c.Levels {
		if l == label {
			return i
		}
	}
	return -1
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	columns []Column
	index   map[string]int
}

// New builds a table from columns, validating equal lengths.
func New(columns []Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	n := -1
	for _, col := range columns {
		if _, dup := t.index[col.Name]; dup {
			return nil, errors.InvalidInput(fmt.Sprintf("duplicate column %q", col.Name))
		}
		if n >= 0 && len(col.Values) != n {
			return nil, errors.InvalidInput(fmt.Sprintf("column %q has %d rows, expected %d", col.Name, len(col.Values), n))
		}
		n = len(col.Values)
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// FromStringColumns infers each column's kind: a column whose every value
// parses as a number is continuous, anything else is categorical with levels
// assigned in first-seen order.
func FromStringColumns(names []string, values [][]string) (*Table, error) {
	if len(names) != len(values) {
		return nil, errors.InvalidInput("column names and values are misaligned")
	}
	cols := make([]Column, 0, len(names))
	for i, name := range names {
		cols = append(cols, inferColumn(name, values[i]))
	}
	return New(cols)
}

func inferColumn(name string, raw []string) Column {
	floats := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		floats[i] = v
	}
	if numeric {
		return Column{Name: name, Kind: Continuous, Values: floats}
	}
	codes := make([]float64, len(raw))
	var levels []string
	seen := map[string]int{}
	for i, s := range raw {
		code, ok := seen[s]
		if !ok {
			code = len(levels)
			seen[s] = code
			levels = append(levels, s)
		}
		codes[i] = float64(code)
	}
	return Column{Name: name, Kind: Categorical, Values: codes, Levels: levels}
}

// NumRows returns the row count (0 for an empty table).
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

// NumColumns returns the column count.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// Names returns column names in declaration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.columns[i], true
}

// Value returns the value at (row, column name).
func (t *Table) Value(row int, name string) (float64, bool) {
	col, ok := t.Column(name)
	if !ok {
		return 0, false
	}
	if row < 0 || row >= len(col.Values) {
		return 0, false
	}
	return col.Values[row], true
}

// Row returns row i as a name→value map.
func (t *Table) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Records renders the table as ordered row maps with categorical codes
// translated back to labels, suitable for JSON output.
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, t.NumRows())
	for i := range records {
		rec := make(map[string]any, len(t.columns))
		for j := range t.columns {
			c := &t.columns[j]
			if c.Kind == Categorical {
				rec[c.Name] = c.Label(i)
			} else {
				rec[c.Name] = c.Values[i]
			}
		}
		records[i] = rec
	}
	return records
}

// Builder accumulates rows for a fixed column schema.
type Builder struct {
	cols []Column
}

// NewBuilder starts an empty table mirroring the schema of template columns.
func NewBuilder(schema []Column) *Builder {
	cols := make([]Column, len(schema))
	for i, c := range schema {
		cols[i] = Column{Name: c.Name, Kind: c.Kind, Levels: c.Levels}
	}
	return &Builder{cols: cols}
}

// Append adds one row of values keyed by column name.
func (b *Builder) Append(row map[string]float64) {
	for i := range b.cols {
		b.cols[i].Values = append(b.cols[i].Values, row[b.cols[i].Name])
	}
}

// Table finalizes the builder.
func (b *Builder) Table() (*Table, error) {
	return New(b.cols)
}
