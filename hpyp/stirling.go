package hpyp

import (
	"math"
	"sync"
)

// logKramp returns the log of the generalized rising factorial
// a * (a+b) * (a+2b) * ... * (a+(n-1)b). Returns 0 for n <= 0.
func logKramp(a, b float64, n int) float64 {
	out := 0.0
	for i := 0; i < n; i++ {
		out += math.Log(a + float64(i)*b)
	}
	return out
}

// stirlingTable holds log generalized Stirling numbers of the first kind
// for one discount value, following the recursion
//
//	S_d(n, k) = S_d(n-1, k-1) + (n-1 - k*d) * S_d(n-1, k)
//
// with S_d(0, 0) = 1 and S_d(n, 0) = 0 for n > 0. S_d(n, k) is the total
// weight of seating arrangements of n customers at k tables under a
// Pitman-Yor process with discount d. Rows are grown on demand; once a row
// is written it is never mutated.
type stirlingTable struct {
	discount float64
	rows     [][]float64 // rows[n][k] = log S_d(n, k), k in [0, n]
}

func newStirlingTable(discount float64) *stirlingTable {
	return &stirlingTable{
		discount: discount,
		rows:     [][]float64{{0.0}}, // log S(0,0) = 0
	}
}

func (st *stirlingTable) grow(n int) {
	for len(st.rows) <= n {
		m := len(st.rows) // building row m
		prev := st.rows[m-1]
		row := make([]float64, m+1)
		row[0] = math.Inf(-1)
		for k := 1; k <= m; k++ {
			diag := math.Inf(-1)
			if k-1 < len(prev) {
				diag = prev[k-1]
			}
			same := math.Inf(-1)
			if k < len(prev) {
				coeff := float64(m-1) - float64(k)*st.discount
				if coeff > 0 {
					same = prev[k] + math.Log(coeff)
				}
			}
			row[k] = logAdd(diag, same)
		}
		st.rows = append(st.rows, row)
	}
}

func (st *stirlingTable) logStirling(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	if n >= len(st.rows) {
		panic("hpyp: stirling table row not built")
	}
	return st.rows[n][k]
}

func logAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// stirlingCache is the process-wide cache of Stirling tables, keyed by
// discount. Tables are built lazily under the lock and only grow; reads of
// completed rows are safe because a table is never handed out before its
// rows cover the requested n.
type stirlingCache struct {
	mu     sync.Mutex
	tables map[float64]*stirlingTable
}

var globalStirling = &stirlingCache{tables: make(map[float64]*stirlingTable)}

// stirlingFor returns a table for the given discount with rows built up to
// and including n.
func stirlingFor(discount float64, n int) *stirlingTable {
	globalStirling.mu.Lock()
	defer globalStirling.mu.Unlock()
	st, ok := globalStirling.tables[discount]
	if !ok {
		st = newStirlingTable(discount)
		globalStirling.tables[discount] = st
	}
	st.grow(n)
	return st
}

// retainStirling drops cached tables for discounts not in keep. Resampling
// hyperparameters abandons the previous continuous discount values, and
// their O(n^2) tables would otherwise accumulate for the life of the
// process.
func retainStirling(keep []float64) {
	globalStirling.mu.Lock()
	defer globalStirling.mu.Unlock()
	for d := range globalStirling.tables {
		live := false
		for _, k := range keep {
			if k == d {
				live = true
				break
			}
		}
		if !live {
			delete(globalStirling.tables, d)
		}
	}
}
