package dataset

import (
	"fmt"

	apperrors "ehrqa/internal/errors"
)

// Column is a named sequence of cells aligned by row index
type Column struct {
	Name   string
	Values []Value
}

// IsNumeric reports whether every non-missing cell is a number.
// An all-missing column is numeric.
func (c *Column) IsNumeric() bool {
	for _, v := range c.Values {
		if v.kind == KindText {
			return false
		}
	}
	return true
}

// MissingCount returns the number of missing cells
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Dataset is an ordered collection of equally long named columns
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a dataset from columns. Columns must share one length and have
// distinct names.
func New(cols ...Column) (*Dataset, error) {
	ds := &Dataset{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			ds.rows = len(c.Values)
		} else if len(c.Values) != ds.rows {
			return nil, apperrors.NewInputError(
				fmt.Sprintf("column %q has %d values, expected %d", c.Name, len(c.Values), ds.rows), nil)
		}
		if _, dup := ds.index[c.Name]; dup {
			return nil, apperrors.NewInputError(fmt.Sprintf("duplicate column %q", c.Name), nil)
		}
		values := make([]Value, len(c.Values))
		copy(values, c.Values)
		ds.index[c.Name] = len(ds.columns)
		ds.columns = append(ds.columns, &Column{Name: c.Name, Values: values})
	}
	return ds, nil
}

// Rows returns the number of rows
func (d *Dataset) Rows() int { return d.rows }

// NumColumns returns the number of columns
func (d *Dataset) NumColumns() int { return len(d.columns) }

// ColumnNames returns the column names in order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. Callers must not modify them.
func (d *Dataset) Columns() []*Column { return d.columns }

// Column looks up a column by name. Callers must not modify it.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Has reports whether the dataset has a column called name
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Clone returns a deep copy
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		columns: make([]*Column, len(d.columns)),
		index:   make(map[string]int, len(d.index)),
		rows:    d.rows,
	}
	for i, c := range d.columns {
		values := make([]Value, len(c.Values))
		copy(values, c.Values)
		out.columns[i] = &Column{Name: c.Name, Values: values}
		out.index[c.Name] = i
	}
	return out
}

// SetColumn replaces the named column in place or appends it when absent.
// It reports whether the column was appended.
func (d *Dataset) SetColumn(name string, values []Value) (bool, error) {
	if len(d.columns) > 0 && len(values) != d.rows {
		return false, apperrors.NewInputError(
			fmt.Sprintf("column %q has %d values, expected %d", name, len(values), d.rows), nil)
	}
	if len(d.columns) == 0 {
		d.rows = len(values)
	}
	if i, ok := d.index[name]; ok {
		d.columns[i].Values = values
		return false, nil
	}
	d.index[name] = len(d.columns)
	d.columns = append(d.columns, &Column{Name: name, Values: values})
	return true, nil
}

// Row returns the cells of row i in column order
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.columns))
	for j, c := range d.columns {
		row[j] = c.Values[i]
	}
	return row
}

// NumericColumns returns the names of the numeric columns in order
func (d *Dataset) NumericColumns() []string {
	var names []string
	for _, c := range d.columns {
		if c.IsNumeric() {
			names = append(names, c.Name)
		}
	}
	return names
}
