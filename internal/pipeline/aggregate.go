package pipeline

import (
	"cmp"
	"fmt"
	"slices"

	"traffic-dashboard/internal/models"
)

// Order controls the iteration order of an AggregateResult
type Order string

const (
	// OrderAscending sorts by the natural order of the key
	OrderAscending Order = "ascending"
	// OrderByValue sorts by mean, ties broken by key order
	OrderByValue Order = "by_value"
	// OrderNone keeps first-seen key order
	OrderNone Order = "none"
)

// ParseOrder validates an order name; empty means ascending
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "":
		return OrderAscending, nil
	case OrderAscending, OrderByValue, OrderNone:
		return Order(s), nil
	default:
		return "", &models.UnsupportedViewError{Kind: "order", Value: s}
	}
}

// Group is the mean traffic volume of every observation sharing Key
type Group[K comparable] struct {
	Key   K       `json:"key"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// AggregateResult is an ordered list of groups
type AggregateResult[K comparable] []Group[K]

// Lookup returns the group for key
func (r AggregateResult[K]) Lookup(key K) (Group[K], bool) {
	for _, g := range r {
		if g.Key == key {
			return g, true
		}
	}
	return Group[K]{}, false
}

// Keys returns the keys in result order
func (r AggregateResult[K]) Keys() []K {
	keys := make([]K, len(r))
	for i, g := range r {
		keys[i] = g.Key
	}
	return keys
}

// Pair is a two-dimensional group key
type Pair[A, B cmp.Ordered] struct {
	First  A `json:"first"`
	Second B `json:"second"`
}

func (p Pair[A, B]) String() string {
	return fmt.Sprintf("(%v, %v)", p.First, p.Second)
}

// ComparePairs orders pairs by First, then Second
func ComparePairs[A, B cmp.Ordered](x, y Pair[A, B]) int {
	if c := cmp.Compare(x.First, y.First); c != 0 {
		return c
	}
	return cmp.Compare(x.Second, y.Second)
}

type groupSum struct {
	sum   float64
	count int
}

// accumulator sums volumes per key and remembers first-seen order
type accumulator[K comparable] struct {
	seen []K
	sums map[K]*groupSum
}

func newAccumulator[K comparable]() *accumulator[K] {
	return &accumulator[K]{sums: make(map[K]*groupSum)}
}

func (a *accumulator[K]) add(key K, volume int) {
	s, ok := a.sums[key]
	if !ok {
		s = &groupSum{}
		a.sums[key] = s
		a.seen = append(a.seen, key)
	}
	s.sum += float64(volume)
	s.count++
}

func (a *accumulator[K]) group(key K) (Group[K], error) {
	s, ok := a.sums[key]
	if !ok || s.count == 0 {
		return Group[K]{}, &models.EmptyGroupError{Key: fmt.Sprint(key)}
	}
	return Group[K]{Key: key, Mean: s.sum / float64(s.count), Count: s.count}, nil
}

// GroupMeanFunc groups observations by key and averages traffic volume.
// compare defines the natural key order used by OrderAscending and to break
// OrderByValue ties.
func GroupMeanFunc[K comparable](
	observations []models.Observation,
	key func(models.Observation) K,
	order Order,
	compare func(a, b K) int,
) (AggregateResult[K], error) {
	order, err := ParseOrder(string(order))
	if err != nil {
		return nil, err
	}

	acc := newAccumulator[K]()
	for _, o := range observations {
		acc.add(key(o), o.TrafficVolume)
	}

	result := make(AggregateResult[K], 0, len(acc.seen))
	for _, k := range acc.seen {
		g, err := acc.group(k)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}

	switch order {
	case OrderAscending:
		slices.SortStableFunc(result, func(a, b Group[K]) int {
			return compare(a.Key, b.Key)
		})
	case OrderByValue:
		slices.SortStableFunc(result, func(a, b Group[K]) int {
			if c := cmp.Compare(a.Mean, b.Mean); c != 0 {
				return c
			}
			return compare(a.Key, b.Key)
		})
	}

	return result, nil
}

// GroupMean is GroupMeanFunc for keys with a built-in ordering
func GroupMean[K cmp.Ordered](
	observations []models.Observation,
	key func(models.Observation) K,
	order Order,
) (AggregateResult[K], error) {
	return GroupMeanFunc(observations, key, order, cmp.Compare[K])
}

// GroupMeanForKeys averages only the requested keys, in the requested order.
// Every key must match at least one observation.
func GroupMeanForKeys[K comparable](
	observations []models.Observation,
	key func(models.Observation) K,
	keys []K,
) (AggregateResult[K], error) {
	if len(keys) == 0 {
		return nil, &models.EmptyGroupError{}
	}

	acc := newAccumulator[K]()
	for _, o := range observations {
		acc.add(key(o), o.TrafficVolume)
	}

	result := make(AggregateResult[K], 0, len(keys))
	for _, k := range keys {
		g, err := acc.group(k)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, nil
}
