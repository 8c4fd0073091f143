package hpyp

import (
	"encoding/json"
	"fmt"
	"math"
)

// FractionalRestaurant keeps real-valued expected customer and table counts
// per dish. Instead of sampling the join-or-open choice it propagates its
// expectation, so updates are deterministic: adding weight w of a customer
// opens the expected fraction of a new table, and removing weight w closes
// the fraction w * t_w / c_w. The backoff recursion is evaluated on the
// expected sufficient statistics.
type FractionalRestaurant struct {
	customers      map[int]float64
	tables         map[int]float64
	totalCustomers float64
	totalTables    float64
}

func NewFractionalRestaurant() *FractionalRestaurant {
	return &FractionalRestaurant{
		customers: make(map[int]float64),
		tables:    make(map[int]float64),
	}
}

func (r *FractionalRestaurant) AddCustomer(dish int, parentProb, d, theta, w float64, rng randSource) float64 {
	openWeight := (theta + d*r.totalTables) * parentProb
	joinWeight := math.Max(0, r.customers[dish]-d*r.tables[dish])
	frac := w
	if openWeight+joinWeight > 0 {
		frac = w * openWeight / (openWeight + joinWeight)
	}
	r.customers[dish] += w
	r.tables[dish] += frac
	r.totalCustomers += w
	r.totalTables += frac
	return frac
}

func (r *FractionalRestaurant) RemoveCustomer(dish int, d, w float64, rng randSource) float64 {
	cw := r.customers[dish]
	if cw < w-countEpsilon {
		panic(fmt.Sprintf("hpyp: remove weight %v exceeds count %v for dish %d in fractional restaurant", w, cw, dish))
	}
	frac := w * r.tables[dish] / cw
	r.customers[dish] -= w
	r.tables[dish] -= frac
	r.totalCustomers -= w
	r.totalTables -= frac
	if r.customers[dish] < countEpsilon {
		delete(r.customers, dish)
		delete(r.tables, dish)
	}
	if r.totalCustomers < countEpsilon {
		r.totalCustomers = 0
		r.totalTables = 0
	}
	return frac
}

func (r *FractionalRestaurant) Probability(dish int, parentProb, d, theta float64) float64 {
	return predictive(r.customers[dish], r.tables[dish],
		r.totalCustomers, r.totalTables, parentProb, d, theta)
}

func (r *FractionalRestaurant) CustomerCount(dish int) float64 { return r.customers[dish] }
func (r *FractionalRestaurant) TableCount(dish int) float64    { return r.tables[dish] }
func (r *FractionalRestaurant) Customers() float64             { return r.totalCustomers }
func (r *FractionalRestaurant) Tables() float64                { return r.totalTables }
func (r *FractionalRestaurant) Dishes() []int                  { return sortedDishesFloat(r.customers) }
func (r *FractionalRestaurant) TableSizes(dish int) []float64  { return nil }

func (r *FractionalRestaurant) CheckConsistency() bool {
	sumC, sumT := 0.0, 0.0
	for dish, c := range r.customers {
		t := r.tables[dish]
		if c < -countEpsilon || t < -countEpsilon {
			return false
		}
		// expected tables never exceed expected customers, and a dish with
		// customers keeps a positive table fraction
		if t > c+1e-6 || (c > countEpsilon && t <= 0) {
			return false
		}
		sumC += c
		sumT += t
	}
	return math.Abs(sumC-r.totalCustomers) < 1e-6 && math.Abs(sumT-r.totalTables) < 1e-6
}

type fractionalRestaurantJSON struct {
	Customers      map[int]float64
	Tables         map[int]float64
	TotalCustomers float64
	TotalTables    float64
}

func (r *FractionalRestaurant) Encode() ([]byte, error) {
	return json.Marshal(&fractionalRestaurantJSON{
		Customers:      r.customers,
		Tables:         r.tables,
		TotalCustomers: r.totalCustomers,
		TotalTables:    r.totalTables,
	})
}

func (r *FractionalRestaurant) Decode(data []byte) error {
	var j fractionalRestaurantJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return serializationErrorf("fractional restaurant payload: %v", err)
	}
	r.customers = j.Customers
	r.tables = j.Tables
	r.totalCustomers = j.TotalCustomers
	r.totalTables = j.TotalTables
	if r.customers == nil {
		r.customers = make(map[int]float64)
	}
	if r.tables == nil {
		r.tables = make(map[int]float64)
	}
	if !r.CheckConsistency() {
		return serializationErrorf("fractional restaurant payload fails consistency check")
	}
	return nil
}
