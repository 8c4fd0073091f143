package hpyp

import (
	"math"
	"sort"
)

// A Restaurant is the seating arrangement attached to one context node.
// Customers are observations of a dish (a symbol in [0, numTypes)), grouped
// into tables; opening a table at a node seats one corresponding customer in
// the parent restaurant, and closing a table removes one. Representations
// differ in how much of the arrangement they keep, but all reproduce the
// same backoff recursion, exactly or in expectation.
type Restaurant interface {
	// AddCustomer seats weight w of a customer eating dish. parentProb is
	// the predictive probability of dish one level up the backoff chain,
	// d and theta the discount and concentration at this node's depth.
	// The return value is the weight of newly opened tables, which the
	// caller must seat in the parent restaurant; zero ends the walk.
	AddCustomer(dish int, parentProb, d, theta, w float64, rng randSource) float64

	// RemoveCustomer removes weight w of a customer eating dish and
	// returns the weight of tables closed by the removal, which the
	// caller must remove from the parent restaurant.
	RemoveCustomer(dish int, d, w float64, rng randSource) float64

	// Probability evaluates the node's term of the backoff recursion:
	// max(0, c_w - d*t_w)/(c + theta) + (theta + d*t)/(c + theta) * parentProb.
	Probability(dish int, parentProb, d, theta float64) float64

	CustomerCount(dish int) float64
	TableCount(dish int) float64
	Customers() float64
	Tables() float64

	// Dishes returns the dishes with at least one customer, in ascending
	// order.
	Dishes() []int

	// TableSizes returns the per-table customer counts for dish, or nil
	// when the representation does not track table identity.
	TableSizes(dish int) []float64

	// CheckConsistency verifies the representation's internal invariants.
	CheckConsistency() bool

	Encode() ([]byte, error)
	Decode(data []byte) error
}

// randSource is the sampling interface restaurants draw from. *rand.Rand
// satisfies it; tests substitute fixed sources.
type randSource interface {
	Float64() float64
}

// tableCountResampler is implemented by representations that can re-draw
// their per-dish table counts in closed form between sweeps.
type tableCountResampler interface {
	resampleTableCounts(parent Restaurant, base, d, theta, parentD, parentTheta float64, rng randSource)
}

// predictive is the shared backoff term. An empty restaurant passes the
// parent probability through unchanged.
func predictive(cw, tw, c, t, parentProb, d, theta float64) float64 {
	if c <= 0 {
		return parentProb
	}
	denom := c + theta
	body := math.Max(0, cw-d*tw) / denom
	smoothing := (theta + d*t) / denom
	return body + smoothing*parentProb
}

const countEpsilon = 1e-12

// sortedDishesInt returns the keys of an int-keyed count map in ascending
// order.
func sortedDishesInt(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for dish := range m {
		out = append(out, dish)
	}
	sort.Ints(out)
	return out
}

func sortedDishesFloat(m map[int]float64) []int {
	out := make([]int, 0, len(m))
	for dish := range m {
		out = append(out, dish)
	}
	sort.Ints(out)
	return out
}
