package batch

import (
	"math"
	"sort"
)

// strata is the working copy consumed during one run: members grouped by
// class key. Removal swaps with the group tail, so group order is not
// preserved once members have been taken.
type strata struct {
	keys    []int
	members map[int][]int
	total   int

	// onTake is called for every member removed from the working copy
	onTake func(member int)
}

func newStrata() *strata {
	return &strata{members: make(map[int][]int)}
}

func (s *strata) add(key, member int) {
	if _, ok := s.members[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.members[key] = append(s.members[key], member)
	s.total++
}

// seal sorts the class keys; call once after the last add
func (s *strata) seal() {
	sort.Ints(s.keys)
}

func (s *strata) count(key int) int {
	return len(s.members[key])
}

// take removes the members at the given distinct positions of a class
// group and returns them in the order of positions. Each removal moves the
// group's tail into the freed slot; positions are handled from the highest
// down so the tail never holds a position still to be removed.
func (s *strata) take(key int, positions []int) []int {
	group := s.members[key]
	taken := make([]int, len(positions))
	for i, pos := range positions {
		taken[i] = group[pos]
	}

	desc := append([]int(nil), positions...)
	sort.Sort(sort.Reverse(sort.IntSlice(desc)))
	for _, pos := range desc {
		last := len(group) - 1
		group[pos] = group[last]
		group = group[:last]
	}
	s.members[key] = group
	s.total -= len(taken)
	s.notify(taken)
	return taken
}

func (s *strata) notify(taken []int) {
	if s.onTake == nil {
		return
	}
	for _, m := range taken {
		s.onTake(m)
	}
}

// byPopulation returns the class keys ordered by remaining count, largest
// first, ties broken by the smaller key
func (s *strata) byPopulation() []int {
	order := make([]int, 0, len(s.keys))
	for _, key := range s.keys {
		if s.count(key) > 0 {
			order = append(order, key)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return s.count(order[i]) > s.count(order[j])
	})
	return order
}

// pick is one member drawn for a batch together with its class key
type pick struct {
	key    int
	member int
}

// share returns round-half-to-even(batchSize * n / remaining), at least 1
func share(batchSize, n, remaining int) int {
	k := int(math.RoundToEven(float64(batchSize) * float64(n) / float64(remaining)))
	if k == 0 {
		k = 1
	}
	return k
}

// drawBatch assembles one full batch. It requires s.total >= batchSize.
//
// Every class present contributes share() members in ascending key order;
// the class that would overflow the batch is truncated and later classes
// contribute nothing. A shortfall is filled from the most populous classes
// as counted before the pass.
func (s *strata) drawBatch(batchSize int, sampler Sampler) []pick {
	fillOrder := s.byPopulation()
	remaining := s.total
	picked := make([]pick, 0, batchSize)

	for _, key := range s.keys {
		n := s.count(key)
		if n == 0 {
			continue
		}
		k := share(batchSize, n, remaining)
		if len(picked)+k > batchSize {
			k = batchSize - len(picked)
		}
		if k == 0 {
			continue
		}
		for _, m := range s.take(key, sampler.WithoutReplacement(n, k)) {
			picked = append(picked, pick{key: key, member: m})
		}
	}

	for _, key := range fillOrder {
		short := batchSize - len(picked)
		if short == 0 {
			break
		}
		n := s.count(key)
		if n == 0 {
			continue
		}
		k := min(short, n)
		for _, m := range s.take(key, sampler.WithoutReplacement(n, k)) {
			picked = append(picked, pick{key: key, member: m})
		}
	}
	return picked
}

// drain removes every remaining member, ascending by key and ascending by
// member within a key
func (s *strata) drain() []pick {
	rest := make([]pick, 0, s.total)
	for _, key := range s.keys {
		group := s.members[key]
		sort.Ints(group)
		for _, m := range group {
			rest = append(rest, pick{key: key, member: m})
		}
		s.members[key] = nil
		s.total -= len(group)
		s.notify(group)
	}
	return rest
}
