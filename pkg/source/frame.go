package source

// Frame holds the raw tabular content of one source file: an ordered header
// and string-valued rows. Reading keeps only the wanted columns, so a Frame
// is already column-restricted; values are otherwise untouched.
type Frame struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewFrame creates an empty frame with the given header.
func NewFrame(columns []string) *Frame {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Frame{Columns: columns, index: idx}
}

// Col returns the position of a column, or -1 if the column is absent.
func (f *Frame) Col(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// HasCol reports whether the frame carries the named column.
func (f *Frame) HasCol(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Append adds one row. The row must be as long as the header.
func (f *Frame) Append(row []string) {
	f.Rows = append(f.Rows, row)
}

// Len returns the number of data rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Value returns the cell at (row, column name), or "" if the column is absent.
func (f *Frame) Value(row int, name string) string {
	i := f.Col(name)
	if i < 0 || i >= len(f.Rows[row]) {
		return ""
	}
	return f.Rows[row][i]
}
