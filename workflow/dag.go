package workflow

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/astra/core"
)

// DAG runs steps in dependency order. Independent steps of the same wave run
// concurrently.
type DAG struct {
	Name string
	// MaxParallel bounds concurrently running steps; 0 means no limit.
	MaxParallel int

	keys  []string
	nodes map[string]Step
	edges map[string][]string
}

// NewDAG creates an empty graph. The zero value is ready to use as well.
func NewDAG(name string) *DAG {
	return &DAG{Name: name}
}

// Node adds or replaces a step.
func (d *DAG) Node(key string, step Step) *DAG {
	if d.nodes == nil {
		d.nodes = make(map[string]Step)
	}
	if _, ok := d.nodes[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.nodes[key] = step
	return d
}

// Link makes dst depend on src.
func (d *DAG) Link(src, dst string) *DAG {
	if d.edges == nil {
		d.edges = make(map[string][]string)
	}
	d.edges[src] = append(d.edges[src], dst)
	return d
}

// waves groups the nodes into batches whose dependencies are all satisfied by
// earlier batches.
func (d *DAG) waves() ([][]string, error) {
	indeg := make(map[string]int, len(d.keys))
	for _, k := range d.keys {
		indeg[k] = 0
	}
	for src, dsts := range d.edges {
		if _, ok := d.nodes[src]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, src)
		}
		for _, dst := range dsts {
			if _, ok := d.nodes[dst]; !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownNode, dst)
			}
			indeg[dst]++
		}
	}

	var ready []string
	for _, k := range d.keys {
		if indeg[k] == 0 {
			ready = append(ready, k)
		}
	}

	var waves [][]string
	seen := 0
	for len(ready) > 0 {
		waves = append(waves, ready)
		seen += len(ready)

		released := make(map[string]bool)
		for _, k := range ready {
			for _, dst := range d.edges[k] {
				indeg[dst]--
				if indeg[dst] == 0 {
					released[dst] = true
				}
			}
		}
		var next []string
		for _, k := range d.keys {
			if released[k] {
				next = append(next, k)
			}
		}
		ready = next
	}

	if seen != len(d.keys) {
		return nil, ErrCycle
	}
	return waves, nil
}

// Order returns the execution order.
func (d *DAG) Order() ([]string, error) {
	waves, err := d.waves()
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", d.Name, err)
	}
	var out []string
	for _, w := range waves {
		out = append(out, w...)
	}
	return out, nil
}

func (d *DAG) parents() map[string][]string {
	p := make(map[string][]string)
	for _, src := range d.keys {
		for _, dst := range d.edges[src] {
			p[dst] = append(p[dst], src)
		}
	}
	return p
}

// Run validates the graph, then executes it wave by wave. Nothing runs when
// validation fails. The first failing step cancels the rest; results of the
// steps that completed are returned with the error.
func (d *DAG) Run(ctx context.Context) (map[string]core.Message, error) {
	waves, err := d.waves()
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", d.Name, err)
	}
	parents := d.parents()

	var mu sync.Mutex
	results := make(map[string]core.Message, len(d.keys))

	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		if d.MaxParallel > 0 {
			g.SetLimit(d.MaxParallel)
		}

		for _, key := range wave {
			mu.Lock()
			inputs := make([]Input, 0, len(parents[key]))
			for _, p := range parents[key] {
				inputs = append(inputs, Input{Node: p, Message: results[p]})
			}
			mu.Unlock()

			step := d.nodes[key]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				msg, err := step(withInputs(gctx, inputs))
				if err != nil {
					return fmt.Errorf("workflow %s: node %q: %w", d.Name, key, err)
				}
				mu.Lock()
				results[key] = msg
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return results, err
		}
	}
	return results, nil
}
