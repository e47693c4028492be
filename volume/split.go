// Package volume plans how a requested volume is moved in pipette trips.
package volume

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverCapacity is matched by every OverCapacityError.
var ErrOverCapacity = errors.New("trip exceeds tip capacity")

// OverCapacityError reports the first trip of a plan that does not fit in a tip.
type OverCapacityError struct {
	Trip     int
	Volume   float64
	Capacity float64
}

func (e *OverCapacityError) Error() string {
	return fmt.Sprintf("trip %d: %.2f ul exceeds tip capacity of %.2f ul", e.Trip+1, e.Volume, e.Capacity)
}

func (e *OverCapacityError) Unwrap() error { return ErrOverCapacity }

func trips(total, max float64) int {
	if total <= 0 || max <= 0 {
		return 0
	}
	return int(math.Ceil(total / max))
}

// SplitUniform divides total into the fewest equal trips of at most max.
func SplitUniform(total, max float64) []float64 {
	n := trips(total, max)
	if n == 0 {
		return nil
	}
	res := make([]float64, n)
	for i := range res {
		res[i] = total / float64(n)
	}
	return res
}

// Pad returns a copy of trips with disposal added to each.
func Pad(trips []float64, disposal float64) []float64 {
	res := make([]float64, len(trips))
	for i, v := range trips {
		res[i] = v + disposal
	}
	return res
}

// Divide splits total into trips of a rounded-up even share with the
// remainder in the last trip.
func Divide(total, max float64) []float64 {
	n := trips(total, max)
	if n == 0 {
		return nil
	}
	r := math.Min(math.Ceil(total/float64(n)), max)
	res := make([]float64, n)
	for i := 0; i < n-1; i++ {
		res[i] = r
	}
	res[n-1] = total - r*float64(n-1)
	return res
}

// Fixed returns n trips of vol.
func Fixed(n int, vol float64) []float64 {
	if n <= 0 {
		return nil
	}
	res := make([]float64, n)
	for i := range res {
		res[i] = vol
	}
	return res
}

// CheckTrips fails on the first trip larger than capacity.
func CheckTrips(trips []float64, capacity float64) error {
	for i, v := range trips {
		if v > capacity {
			return &OverCapacityError{Trip: i, Volume: v, Capacity: capacity}
		}
	}
	return nil
}

// Sum adds up a plan.
func Sum(trips []float64) (total float64) {
	for _, v := range trips {
		total += v
	}
	return total
}

// Chunk groups items into slices of at most n.
func Chunk[T any](items []T, n int) [][]T {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	res := make([][]T, 0, (len(items)+n-1)/n)
	for len(items) > n {
		res = append(res, items[:n:n])
		items = items[n:]
	}
	return append(res, items)
}
