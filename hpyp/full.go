package hpyp

import (
	"encoding/json"
	"fmt"
	"math"
)

// FullRestaurant keeps the explicit table multiset for every dish. It is
// the exact reference representation: each operation is O(tables for the
// dish), and per-table detail is always available.
type FullRestaurant struct {
	tables         map[int][]int // dish to per-table customer counts
	customerCount  map[int]int
	tableCount     map[int]int
	totalCustomers int
	totalTables    int
}

func NewFullRestaurant() *FullRestaurant {
	return &FullRestaurant{
		tables:        make(map[int][]int),
		customerCount: make(map[int]int),
		tableCount:    make(map[int]int),
	}
}

func (r *FullRestaurant) AddCustomer(dish int, parentProb, d, theta, w float64, rng randSource) float64 {
	tbls := r.tables[dish]

	// sample a table: join table k with weight max(0, n_k - d), open a new
	// one with weight (theta + d*T) * parentProb
	scores := make([]float64, len(tbls)+1)
	sum := 0.0
	for k, n := range tbls {
		scores[k] = math.Max(0, float64(n)-d)
		sum += scores[k]
	}
	scores[len(tbls)] = (theta + d*float64(r.totalTables)) * parentProb
	sum += scores[len(tbls)]

	k := 0
	if sum > 0 {
		target := rng.Float64() * sum
		acc := 0.0
		for {
			acc += scores[k]
			if acc > target || k == len(tbls) {
				break
			}
			k++
		}
	} else {
		k = len(tbls) // degenerate weights force a new table
	}

	r.customerCount[dish]++
	r.totalCustomers++
	if k == len(tbls) {
		r.tables[dish] = append(tbls, 1)
		r.tableCount[dish]++
		r.totalTables++
		return w
	}
	r.tables[dish][k]++
	return 0
}

func (r *FullRestaurant) RemoveCustomer(dish int, d, w float64, rng randSource) float64 {
	tbls, ok := r.tables[dish]
	if !ok || len(tbls) == 0 {
		panic(fmt.Sprintf("hpyp: remove from empty dish %d in full restaurant", dish))
	}

	// pick the customer uniformly, i.e. a table proportional to its size
	sum := 0.0
	for _, n := range tbls {
		sum += float64(n)
	}
	target := rng.Float64() * sum
	k := 0
	acc := 0.0
	for {
		acc += float64(tbls[k])
		if acc > target || k == len(tbls)-1 {
			break
		}
		k++
	}

	r.customerCount[dish]--
	r.totalCustomers--
	tbls[k]--
	if tbls[k] > 0 {
		return 0
	}
	r.tables[dish] = append(tbls[:k], tbls[k+1:]...)
	r.tableCount[dish]--
	r.totalTables--
	if r.customerCount[dish] == 0 {
		delete(r.customerCount, dish)
		delete(r.tableCount, dish)
		delete(r.tables, dish)
	}
	return w
}

func (r *FullRestaurant) Probability(dish int, parentProb, d, theta float64) float64 {
	return predictive(
		float64(r.customerCount[dish]), float64(r.tableCount[dish]),
		float64(r.totalCustomers), float64(r.totalTables),
		parentProb, d, theta)
}

func (r *FullRestaurant) CustomerCount(dish int) float64 { return float64(r.customerCount[dish]) }
func (r *FullRestaurant) TableCount(dish int) float64    { return float64(r.tableCount[dish]) }
func (r *FullRestaurant) Customers() float64             { return float64(r.totalCustomers) }
func (r *FullRestaurant) Tables() float64                { return float64(r.totalTables) }
func (r *FullRestaurant) Dishes() []int                  { return sortedDishesInt(r.customerCount) }

func (r *FullRestaurant) TableSizes(dish int) []float64 {
	tbls := r.tables[dish]
	if tbls == nil {
		return nil
	}
	out := make([]float64, len(tbls))
	for i, n := range tbls {
		out[i] = float64(n)
	}
	return out
}

func (r *FullRestaurant) CheckConsistency() bool {
	totalC, totalT := 0, 0
	for dish, tbls := range r.tables {
		sum := 0
		for _, n := range tbls {
			if n <= 0 {
				return false
			}
			sum += n
		}
		if sum != r.customerCount[dish] || len(tbls) != r.tableCount[dish] {
			return false
		}
		if r.tableCount[dish] > r.customerCount[dish] {
			return false
		}
		if r.customerCount[dish] > 0 && r.tableCount[dish] < 1 {
			return false
		}
		totalC += sum
		totalT += len(tbls)
	}
	return totalC == r.totalCustomers && totalT == r.totalTables
}

type fullRestaurantJSON struct {
	Tables         map[int][]int
	CustomerCount  map[int]int
	TableCount     map[int]int
	TotalCustomers int
	TotalTables    int
}

func (r *FullRestaurant) Encode() ([]byte, error) {
	return json.Marshal(&fullRestaurantJSON{
		Tables:         r.tables,
		CustomerCount:  r.customerCount,
		TableCount:     r.tableCount,
		TotalCustomers: r.totalCustomers,
		TotalTables:    r.totalTables,
	})
}

func (r *FullRestaurant) Decode(data []byte) error {
	var j fullRestaurantJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return serializationErrorf("full restaurant payload: %v", err)
	}
	r.tables = j.Tables
	r.customerCount = j.CustomerCount
	r.tableCount = j.TableCount
	r.totalCustomers = j.TotalCustomers
	r.totalTables = j.TotalTables
	if r.tables == nil {
		r.tables = make(map[int][]int)
	}
	if r.customerCount == nil {
		r.customerCount = make(map[int]int)
	}
	if r.tableCount == nil {
		r.tableCount = make(map[int]int)
	}
	if !r.CheckConsistency() {
		return serializationErrorf("full restaurant payload fails consistency check")
	}
	return nil
}
