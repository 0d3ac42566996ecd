package dataset

import "fmt"

// CSR is a sparse matrix in compressed sparse row form. For the influence
// matrix rows are voxels and columns are beamlets.
type CSR struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Indptr  []int     `json:"indptr"`
	Indices []int     `json:"indices"`
	Data    []float64 `json:"data"`
}

// Validate checks the structural invariants of the matrix.
func (m *CSR) Validate() error {
	if len(m.Indptr) != m.Rows+1 {
		return &Error{Code: ErrCodeDimensionMismatch, Message: fmt.Sprintf("indptr length %d, want %d", len(m.Indptr), m.Rows+1)}
	}
	if len(m.Indices) != len(m.Data) {
		return &Error{Code: ErrCodeDimensionMismatch, Message: fmt.Sprintf("indices length %d, data length %d", len(m.Indices), len(m.Data))}
	}
	if m.Indptr[0] != 0 || m.Indptr[m.Rows] != len(m.Data) {
		return &Error{Code: ErrCodeDimensionMismatch, Message: "indptr does not span data"}
	}
	for r := 0; r < m.Rows; r++ {
		if m.Indptr[r] > m.Indptr[r+1] {
			return &Error{Code: ErrCodeDimensionMismatch, Message: fmt.Sprintf("indptr decreases at row %d", r)}
		}
	}
	for _, c := range m.Indices {
		if c < 0 || c >= m.Cols {
			return &Error{Code: ErrCodeDimensionMismatch, Message: fmt.Sprintf("column %d out of range [0,%d)", c, m.Cols)}
		}
	}
	return nil
}

// Row returns the column indices and values of row i. The slices alias the
// matrix storage.
func (m *CSR) Row(i int) ([]int, []float64) {
	lo, hi := m.Indptr[i], m.Indptr[i+1]
	return m.Indices[lo:hi], m.Data[lo:hi]
}

// MulVec returns m·x.
func (m *CSR) MulVec(x []float64) ([]float64, error) {
	if len(x) != m.Cols {
		return nil, DimensionMismatch("", m.Cols, len(x))
	}
	out := make([]float64, m.Rows)
	for r := 0; r < m.Rows; r++ {
		cols, vals := m.Row(r)
		var sum float64
		for k, c := range cols {
			sum += vals[k] * x[c]
		}
		out[r] = sum
	}
	return out, nil
}

// SelectColumns returns a matrix holding only the given columns, renumbered
// in the order given.
func (m *CSR) SelectColumns(cols []int) *CSR {
	remap := make(map[int]int, len(cols))
	for i, c := range cols {
		remap[c] = i
	}
	out := &CSR{Rows: m.Rows, Cols: len(cols), Indptr: make([]int, 1, m.Rows+1)}
	for r := 0; r < m.Rows; r++ {
		rc, rv := m.Row(r)
		for k, c := range rc {
			if nc, ok := remap[c]; ok {
				out.Indices = append(out.Indices, nc)
				out.Data = append(out.Data, rv[k])
			}
		}
		out.Indptr = append(out.Indptr, len(out.Data))
	}
	return out
}
