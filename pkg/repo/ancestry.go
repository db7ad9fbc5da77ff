package repo

import (
	"fmt"
	"sort"

	"github.com/deevcs/dee/pkg/object"
)

const maxAncestryTraversalSteps = 1_000_000

// ancestryStepsLimit may be tightened by tests.
var ancestryStepsLimit = maxAncestryTraversalSteps

func ancestryLimit() int {
	if ancestryStepsLimit <= 0 || ancestryStepsLimit > maxAncestryTraversalSteps {
		return maxAncestryTraversalSteps
	}
	return ancestryStepsLimit
}

func ancestryLimitError(limit int) error {
	return fmt.Errorf("ancestry: traversal exceeded maximum steps (%d)", limit)
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following parent links (all parents, breadth first). A commit is its own
// ancestor.
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	if ancestor == descendant {
		return true, nil
	}

	limit := ancestryLimit()
	visited := map[object.Hash]bool{descendant: true}
	queue := []object.Hash{descendant}
	for steps := 0; len(queue) > 0; steps++ {
		if steps >= limit {
			return false, ancestryLimitError(limit)
		}
		cur := queue[0]
		queue = queue[1:]

		c, err := r.readCommit(cur)
		if err != nil {
			return false, err
		}
		for _, p := range c.Parents {
			if p == ancestor {
				return true, nil
			}
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}

// ancestors returns every commit reachable from tip, tip included.
func (r *Repo) ancestors(tip object.Hash) (map[object.Hash]bool, error) {
	return r.collectUntil(tip, nil)
}

// collectUntil walks parent links from tip and returns the visited commits,
// not descending into (or including) commits in stop.
func (r *Repo) collectUntil(tip object.Hash, stop map[object.Hash]bool) (map[object.Hash]bool, error) {
	seen := make(map[object.Hash]bool)
	if tip == "" || stop[tip] {
		return seen, nil
	}

	limit := ancestryLimit()
	seen[tip] = true
	stack := []object.Hash{tip}
	for steps := 0; len(stack) > 0; steps++ {
		if steps >= limit {
			return nil, ancestryLimitError(limit)
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c, err := r.readCommit(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Parents {
			if seen[p] || stop[p] {
				continue
			}
			seen[p] = true
			stack = append(stack, p)
		}
	}
	return seen, nil
}

// generations computes generation numbers: 1 for a root commit, otherwise
// one more than the highest parent generation.
type generations struct {
	repo *Repo
	memo map[object.Hash]uint64
}

func newGenerations(r *Repo) *generations {
	return &generations{repo: r, memo: make(map[object.Hash]uint64)}
}

func (g *generations) of(h object.Hash) (uint64, error) {
	if gen, ok := g.memo[h]; ok {
		return gen, nil
	}

	type frame struct {
		hash     object.Hash
		expanded bool
	}
	limit := ancestryLimit()
	stack := []frame{{hash: h}}
	for steps := 0; len(stack) > 0; steps++ {
		if steps >= limit {
			return 0, ancestryLimitError(limit)
		}
		top := stack[len(stack)-1]
		if _, ok := g.memo[top.hash]; ok {
			stack = stack[:len(stack)-1]
			continue
		}
		c, err := g.repo.readCommit(top.hash)
		if err != nil {
			return 0, err
		}

		if !top.expanded {
			stack[len(stack)-1].expanded = true
			for _, p := range c.Parents {
				if _, ok := g.memo[p]; !ok {
					stack = append(stack, frame{hash: p})
				}
			}
			continue
		}

		var gen uint64
		for _, p := range c.Parents {
			if pg := g.memo[p]; pg > gen {
				gen = pg
			}
		}
		g.memo[top.hash] = gen + 1
		stack = stack[:len(stack)-1]
	}
	return g.memo[h], nil
}

// topoOrder sorts commits parent-to-child: by generation, then timestamp,
// then hash.
func (r *Repo) topoOrder(set map[object.Hash]bool) ([]object.Hash, error) {
	gens := newGenerations(r)
	type item struct {
		hash object.Hash
		gen  uint64
		ts   int64
	}
	items := make([]item, 0, len(set))
	for h := range set {
		gen, err := gens.of(h)
		if err != nil {
			return nil, err
		}
		c, err := r.readCommit(h)
		if err != nil {
			return nil, err
		}
		items = append(items, item{hash: h, gen: gen, ts: c.Timestamp})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].gen != items[j].gen {
			return items[i].gen < items[j].gen
		}
		if items[i].ts != items[j].ts {
			return items[i].ts < items[j].ts
		}
		return items[i].hash < items[j].hash
	})

	out := make([]object.Hash, len(items))
	for i, it := range items {
		out[i] = it.hash
	}
	return out, nil
}
