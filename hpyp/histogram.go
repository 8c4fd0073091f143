package hpyp

import (
	"encoding/json"
	"fmt"
	"math"
)

// HistogramRestaurant groups tables by size class instead of identity: for
// every dish it keeps a map from table size to the number of tables of that
// size. Aggregate statistics are exact; only the identity of individual
// tables is lost, which saves memory for high-frequency dishes whose many
// tables collapse into few size classes.
type HistogramRestaurant struct {
	hist           map[int]map[int]int // dish to (table size to multiplicity)
	customerCount  map[int]int
	tableCount     map[int]int
	totalCustomers int
	totalTables    int
}

func NewHistogramRestaurant() *HistogramRestaurant {
	return &HistogramRestaurant{
		hist:          make(map[int]map[int]int),
		customerCount: make(map[int]int),
		tableCount:    make(map[int]int),
	}
}

func (r *HistogramRestaurant) AddCustomer(dish int, parentProb, d, theta, w float64, rng randSource) float64 {
	h := r.hist[dish]

	// join a table of size s with weight m_s * (s - d), open a new one
	// with weight (theta + d*T) * parentProb
	sum := 0.0
	for s, m := range h {
		sum += float64(m) * math.Max(0, float64(s)-d)
	}
	newWeight := (theta + d*float64(r.totalTables)) * parentProb
	total := sum + newWeight

	r.customerCount[dish]++
	r.totalCustomers++

	open := total <= 0
	if !open {
		target := rng.Float64() * total
		if target >= sum {
			open = true
		} else {
			acc := 0.0
			for s, m := range h {
				acc += float64(m) * math.Max(0, float64(s)-d)
				if acc > target {
					// move one table from class s to class s+1
					r.shiftClass(dish, s, s+1)
					return 0
				}
			}
			// float roundoff: treat as joining the last class visited
			open = true
		}
	}

	if h == nil {
		h = make(map[int]int)
		r.hist[dish] = h
	}
	h[1]++
	r.tableCount[dish]++
	r.totalTables++
	return w
}

func (r *HistogramRestaurant) RemoveCustomer(dish int, d, w float64, rng randSource) float64 {
	h, ok := r.hist[dish]
	if !ok || len(h) == 0 {
		panic(fmt.Sprintf("hpyp: remove from empty dish %d in histogram restaurant", dish))
	}

	// pick a customer uniformly: class s with weight m_s * s
	sum := 0.0
	for s, m := range h {
		sum += float64(m) * float64(s)
	}
	target := rng.Float64() * sum
	chosen := -1
	acc := 0.0
	for s, m := range h {
		acc += float64(m) * float64(s)
		chosen = s
		if acc > target {
			break
		}
	}

	r.customerCount[dish]--
	r.totalCustomers--
	if chosen > 1 {
		r.shiftClass(dish, chosen, chosen-1)
		return 0
	}
	// a singleton table closes
	h[1]--
	if h[1] == 0 {
		delete(h, 1)
	}
	r.tableCount[dish]--
	r.totalTables--
	if r.customerCount[dish] == 0 {
		delete(r.customerCount, dish)
		delete(r.tableCount, dish)
		delete(r.hist, dish)
	}
	return w
}

// shiftClass moves one table of dish from size class from to size class to.
func (r *HistogramRestaurant) shiftClass(dish, from, to int) {
	h := r.hist[dish]
	h[from]--
	if h[from] == 0 {
		delete(h, from)
	}
	h[to]++
}

func (r *HistogramRestaurant) Probability(dish int, parentProb, d, theta float64) float64 {
	return predictive(
		float64(r.customerCount[dish]), float64(r.tableCount[dish]),
		float64(r.totalCustomers), float64(r.totalTables),
		parentProb, d, theta)
}

func (r *HistogramRestaurant) CustomerCount(dish int) float64 { return float64(r.customerCount[dish]) }
func (r *HistogramRestaurant) TableCount(dish int) float64    { return float64(r.tableCount[dish]) }
func (r *HistogramRestaurant) Customers() float64             { return float64(r.totalCustomers) }
func (r *HistogramRestaurant) Tables() float64                { return float64(r.totalTables) }
func (r *HistogramRestaurant) Dishes() []int                  { return sortedDishesInt(r.customerCount) }

func (r *HistogramRestaurant) TableSizes(dish int) []float64 {
	h := r.hist[dish]
	if h == nil {
		return nil
	}
	out := make([]float64, 0, r.tableCount[dish])
	for s, m := range h {
		for i := 0; i < m; i++ {
			out = append(out, float64(s))
		}
	}
	return out
}

func (r *HistogramRestaurant) CheckConsistency() bool {
	totalC, totalT := 0, 0
	for dish, h := range r.hist {
		sumC, sumT := 0, 0
		for s, m := range h {
			if s <= 0 || m <= 0 {
				return false
			}
			sumC += s * m
			sumT += m
		}
		if sumC != r.customerCount[dish] || sumT != r.tableCount[dish] {
			return false
		}
		if sumT > sumC || (sumC > 0 && sumT < 1) {
			return false
		}
		totalC += sumC
		totalT += sumT
	}
	return totalC == r.totalCustomers && totalT == r.totalTables
}

type histogramRestaurantJSON struct {
	Hist           map[int]map[int]int
	CustomerCount  map[int]int
	TableCount     map[int]int
	TotalCustomers int
	TotalTables    int
}

func (r *HistogramRestaurant) Encode() ([]byte, error) {
	return json.Marshal(&histogramRestaurantJSON{
		Hist:           r.hist,
		CustomerCount:  r.customerCount,
		TableCount:     r.tableCount,
		TotalCustomers: r.totalCustomers,
		TotalTables:    r.totalTables,
	})
}

func (r *HistogramRestaurant) Decode(data []byte) error {
	var j histogramRestaurantJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return serializationErrorf("histogram restaurant payload: %v", err)
	}
	r.hist = j.Hist
	r.customerCount = j.CustomerCount
	r.tableCount = j.TableCount
	r.totalCustomers = j.TotalCustomers
	r.totalTables = j.TotalTables
	if r.hist == nil {
		r.hist = make(map[int]map[int]int)
	}
	if r.customerCount == nil {
		r.customerCount = make(map[int]int)
	}
	if r.tableCount == nil {
		r.tableCount = make(map[int]int)
	}
	if !r.CheckConsistency() {
		return serializationErrorf("histogram restaurant payload fails consistency check")
	}
	return nil
}
