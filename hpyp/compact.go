package hpyp

import (
	"encoding/json"
	"fmt"
	"math"
)

// CompactRestaurant keeps only the (customer count, table count) pair per
// dish. Two strategies recover the table-level detail the pair discards:
//
//   - reinstantiating: when an operation needs table identity (removal, so
//     far), a full table multiset is sampled from the exact conditional
//     distribution of arrangements given the pair, used, and discarded;
//   - stirling: table-level questions are answered in closed form through
//     ratios of generalized Stirling numbers, so the detail is never
//     materialized.
//
// Both strategies leave the sufficient statistics exactly distributed as in
// the full representation.
type CompactRestaurant struct {
	reinstantiate  bool
	customers      map[int]int
	tables         map[int]int
	totalCustomers int
	totalTables    int
}

func NewCompactRestaurant(reinstantiate bool) *CompactRestaurant {
	return &CompactRestaurant{
		reinstantiate: reinstantiate,
		customers:     make(map[int]int),
		tables:        make(map[int]int),
	}
}

func (r *CompactRestaurant) AddCustomer(dish int, parentProb, d, theta, w float64, rng randSource) float64 {
	// joining an existing table only increments the customer count, so the
	// aggregate join weight suffices and no detail is needed
	openWeight := (theta + d*float64(r.totalTables)) * parentProb
	joinWeight := math.Max(0, float64(r.customers[dish])-d*float64(r.tables[dish]))

	open := true
	if openWeight+joinWeight > 0 {
		open = rng.Float64()*(openWeight+joinWeight) < openWeight
	}
	r.customers[dish]++
	r.totalCustomers++
	if open {
		r.tables[dish]++
		r.totalTables++
		return w
	}
	return 0
}

func (r *CompactRestaurant) RemoveCustomer(dish int, d, w float64, rng randSource) float64 {
	cw := r.customers[dish]
	tw := r.tables[dish]
	if cw == 0 {
		panic(fmt.Sprintf("hpyp: remove from empty dish %d in compact restaurant", dish))
	}

	var closes bool
	switch {
	case cw == tw:
		closes = true // all tables are singletons
	case r.reinstantiate:
		sizes := sampleArrangement(cw, tw, d, rng)
		closes = pickTableBySize(sizes, rng) == 1
	default:
		// the removed customer sat alone with probability
		// S_d(c-1, t-1) / S_d(c, t)
		st := stirlingFor(d, cw)
		logP := st.logStirling(cw-1, tw-1) - st.logStirling(cw, tw)
		closes = rng.Float64() < math.Exp(logP)
	}

	r.customers[dish]--
	r.totalCustomers--
	out := 0.0
	if closes {
		r.tables[dish]--
		r.totalTables--
		out = w
	}
	if r.customers[dish] == 0 {
		if r.tables[dish] != 0 {
			panic(fmt.Sprintf("hpyp: dish %d left %d tables with no customers", dish, r.tables[dish]))
		}
		delete(r.customers, dish)
		delete(r.tables, dish)
	}
	return out
}

// sampleArrangement draws per-table customer counts from the conditional
// distribution of seating arrangements of c customers at exactly t tables
// under discount d. Customers are replayed in arrival order; the chance
// that customer j+1 opens a table, given k tables so far and the (c, t)
// endpoint, is the ratio of completion weights B(j+1,k+1)/B(j,k), where B
// follows the generalized Stirling recursion run backwards from B(c,t)=1.
func sampleArrangement(c, t int, d float64, rng randSource) []int {
	if t < 1 || t > c {
		panic(fmt.Sprintf("hpyp: cannot arrange %d customers at %d tables", c, t))
	}
	logB := make([][]float64, c+1)
	for j := range logB {
		logB[j] = make([]float64, t+2)
		for k := range logB[j] {
			logB[j][k] = math.Inf(-1)
		}
	}
	logB[c][t] = 0
	for j := c - 1; j >= 1; j-- {
		for k := 1; k <= t && k <= j; k++ {
			openTerm := logB[j+1][k+1]
			joinCoeff := float64(j) - float64(k)*d
			joinTerm := math.Inf(-1)
			if joinCoeff > 0 {
				joinTerm = math.Log(joinCoeff) + logB[j+1][k]
			}
			logB[j][k] = logAdd(openTerm, joinTerm)
		}
	}

	sizes := []int{1}
	k := 1
	for j := 1; j < c; j++ {
		pOpen := math.Exp(logB[j+1][k+1] - logB[j][k])
		if rng.Float64() < pOpen {
			sizes = append(sizes, 1)
			k++
			continue
		}
		// join an existing table with weight (size - d)
		sum := 0.0
		for _, s := range sizes {
			sum += float64(s) - d
		}
		target := rng.Float64() * sum
		acc := 0.0
		for i := range sizes {
			acc += float64(sizes[i]) - d
			if acc > target || i == len(sizes)-1 {
				sizes[i]++
				break
			}
		}
	}
	if k != t {
		panic("hpyp: reinstantiation missed the table count")
	}
	return sizes
}

// pickTableBySize picks a table proportional to its size and returns the
// chosen size.
func pickTableBySize(sizes []int, rng randSource) int {
	sum := 0
	for _, s := range sizes {
		sum += s
	}
	target := rng.Float64() * float64(sum)
	acc := 0.0
	for i, s := range sizes {
		acc += float64(s)
		if acc > target || i == len(sizes)-1 {
			return s
		}
	}
	return sizes[len(sizes)-1]
}

// resampleTableCounts re-draws t_w for every dish in closed form, using
// generalized Stirling numbers: the posterior weight of t_w = t combines the
// seating weight of t tables here with the weight of the corresponding t
// virtual customers in the parent (or t draws from the base distribution at
// the root). Parent customer counts are adjusted to keep the virtual
// customer invariant.
func (r *CompactRestaurant) resampleTableCounts(parent Restaurant, base, d, theta, parentD, parentTheta float64, rng randSource) {
	var cp *CompactRestaurant
	if parent != nil {
		var ok bool
		cp, ok = parent.(*CompactRestaurant)
		if !ok {
			panic("hpyp: compact resampling requires a compact parent")
		}
	}

	for _, dish := range r.Dishes() {
		cw := r.customers[dish]
		tw := r.tables[dish]
		if cw < 2 {
			continue
		}
		otherT := r.totalTables - tw
		st := stirlingFor(d, cw)

		logProbs := make([]float64, cw)
		if cp == nil {
			for t := 1; t <= cw; t++ {
				logProbs[t-1] = logKramp(theta+d, d, otherT+t-1) +
					st.logStirling(cw, t) +
					float64(t)*math.Log(base)
			}
		} else {
			parentCw := cp.customers[dish]
			parentTw := cp.tables[dish]
			parentOtherC := cp.totalCustomers - tw
			pst := stirlingFor(parentD, parentCw-tw+cw)
			for t := 1; t <= cw; t++ {
				newParentCw := parentCw - tw + t
				if newParentCw < parentTw {
					logProbs[t-1] = math.Inf(-1)
					continue
				}
				logProbs[t-1] = logKramp(theta+d, d, otherT+t-1) -
					logKramp(parentTheta+1, 1, parentOtherC+t-1) +
					st.logStirling(cw, t) +
					pst.logStirling(newParentCw, parentTw)
			}
		}

		sampled := sampleLogWeights(logProbs, rng) + 1
		if sampled != tw {
			r.tables[dish] = sampled
			r.totalTables += sampled - tw
			if cp != nil {
				delta := sampled - tw
				cp.customers[dish] += delta
				cp.totalCustomers += delta
			}
		}
	}
}

// sampleLogWeights samples an index proportional to exp(w - max(w)).
func sampleLogWeights(logW []float64, rng randSource) int {
	max := math.Inf(-1)
	for _, w := range logW {
		if w > max {
			max = w
		}
	}
	sum := 0.0
	probs := make([]float64, len(logW))
	for i, w := range logW {
		probs[i] = math.Exp(w - max)
		sum += probs[i]
	}
	target := rng.Float64() * sum
	acc := 0.0
	for i, p := range probs {
		acc += p
		if acc > target || i == len(probs)-1 {
			return i
		}
	}
	return len(probs) - 1
}

func (r *CompactRestaurant) Probability(dish int, parentProb, d, theta float64) float64 {
	return predictive(
		float64(r.customers[dish]), float64(r.tables[dish]),
		float64(r.totalCustomers), float64(r.totalTables),
		parentProb, d, theta)
}

func (r *CompactRestaurant) CustomerCount(dish int) float64 { return float64(r.customers[dish]) }
func (r *CompactRestaurant) TableCount(dish int) float64    { return float64(r.tables[dish]) }
func (r *CompactRestaurant) Customers() float64             { return float64(r.totalCustomers) }
func (r *CompactRestaurant) Tables() float64                { return float64(r.totalTables) }
func (r *CompactRestaurant) Dishes() []int                  { return sortedDishesInt(r.customers) }
func (r *CompactRestaurant) TableSizes(dish int) []float64  { return nil }

func (r *CompactRestaurant) CheckConsistency() bool {
	sumC, sumT := 0, 0
	for dish, c := range r.customers {
		t := r.tables[dish]
		if c < 0 || t > c || (c > 0 && t < 1) {
			return false
		}
		sumC += c
		sumT += t
	}
	return sumC == r.totalCustomers && sumT == r.totalTables
}

type compactRestaurantJSON struct {
	Customers      map[int]int
	Tables         map[int]int
	TotalCustomers int
	TotalTables    int
}

func (r *CompactRestaurant) Encode() ([]byte, error) {
	return json.Marshal(&compactRestaurantJSON{
		Customers:      r.customers,
		Tables:         r.tables,
		TotalCustomers: r.totalCustomers,
		TotalTables:    r.totalTables,
	})
}

func (r *CompactRestaurant) Decode(data []byte) error {
	var j compactRestaurantJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return serializationErrorf("compact restaurant payload: %v", err)
	}
	r.customers = j.Customers
	r.tables = j.Tables
	r.totalCustomers = j.TotalCustomers
	r.totalTables = j.TotalTables
	if r.customers == nil {
		r.customers = make(map[int]int)
	}
	if r.tables == nil {
		r.tables = make(map[int]int)
	}
	if !r.CheckConsistency() {
		return serializationErrorf("compact restaurant payload fails consistency check")
	}
	return nil
}
