package hpyp

import (
	"encoding/json"
	"fmt"
)

// KneserNeyRestaurant is the cheapest representation: no seating detail at
// all, just customer counts. It behaves as the degenerate seating in which
// every dish occupies exactly one table, which turns the shared backoff
// recursion into interpolated Kneser-Ney smoothing with discount d.
type KneserNeyRestaurant struct {
	customers      map[int]int
	totalCustomers int
}

func NewKneserNeyRestaurant() *KneserNeyRestaurant {
	return &KneserNeyRestaurant{customers: make(map[int]int)}
}

func (r *KneserNeyRestaurant) AddCustomer(dish int, parentProb, d, theta, w float64, rng randSource) float64 {
	r.customers[dish]++
	r.totalCustomers++
	if r.customers[dish] == 1 {
		return w
	}
	return 0
}

func (r *KneserNeyRestaurant) RemoveCustomer(dish int, d, w float64, rng randSource) float64 {
	if r.customers[dish] == 0 {
		panic(fmt.Sprintf("hpyp: remove from empty dish %d in kneser-ney restaurant", dish))
	}
	r.customers[dish]--
	r.totalCustomers--
	if r.customers[dish] == 0 {
		delete(r.customers, dish)
		return w
	}
	return 0
}

func (r *KneserNeyRestaurant) Probability(dish int, parentProb, d, theta float64) float64 {
	return predictive(float64(r.customers[dish]), r.TableCount(dish),
		float64(r.totalCustomers), float64(len(r.customers)),
		parentProb, d, theta)
}

func (r *KneserNeyRestaurant) CustomerCount(dish int) float64 { return float64(r.customers[dish]) }

func (r *KneserNeyRestaurant) TableCount(dish int) float64 {
	if r.customers[dish] > 0 {
		return 1
	}
	return 0
}

func (r *KneserNeyRestaurant) Customers() float64            { return float64(r.totalCustomers) }
func (r *KneserNeyRestaurant) Tables() float64               { return float64(len(r.customers)) }
func (r *KneserNeyRestaurant) Dishes() []int                 { return sortedDishesInt(r.customers) }
func (r *KneserNeyRestaurant) TableSizes(dish int) []float64 { return nil }

func (r *KneserNeyRestaurant) CheckConsistency() bool {
	sum := 0
	for _, c := range r.customers {
		if c <= 0 {
			return false
		}
		sum += c
	}
	return sum == r.totalCustomers
}

type kneserNeyRestaurantJSON struct {
	Customers      map[int]int
	TotalCustomers int
}

func (r *KneserNeyRestaurant) Encode() ([]byte, error) {
	return json.Marshal(&kneserNeyRestaurantJSON{
		Customers:      r.customers,
		TotalCustomers: r.totalCustomers,
	})
}

func (r *KneserNeyRestaurant) Decode(data []byte) error {
	var j kneserNeyRestaurantJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return serializationErrorf("kneser-ney restaurant payload: %v", err)
	}
	r.customers = j.Customers
	r.totalCustomers = j.TotalCustomers
	if r.customers == nil {
		r.customers = make(map[int]int)
	}
	if !r.CheckConsistency() {
		return serializationErrorf("kneser-ney restaurant payload fails consistency check")
	}
	return nil
}
