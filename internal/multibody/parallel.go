package multibody

import "sync"

// Sweeps visit whole levels in order; only the order across levels carries
// meaning. Within a level no node reads a sibling's per-step results, so a
// level may be fanned out across goroutines when parallel mode is on.

const minParallelNodes = 8

func (t *Tree) sweepOut(fn func(n *Node)) {
	for _, level := range t.levels {
		t.eachInLevel(level, fn)
	}
}

func (t *Tree) sweepIn(fn func(n *Node)) {
	for i := len(t.levels) - 1; i >= 0; i-- {
		t.eachInLevel(t.levels[i], fn)
	}
}

func (t *Tree) eachInLevel(nodes []*Node, fn func(n *Node)) {
	if !t.parallel || len(nodes) < minParallelNodes {
		for _, n := range nodes {
			fn(n)
		}
		return
	}
	parallelFor(len(nodes), func(start, end int) {
		for _, n := range nodes[start:end] {
			fn(n)
		}
	})
}

// parallelFor splits [0, n) into chunks executed concurrently.
func parallelFor(n int, fn func(start, end int)) {
	const workers = 4
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
