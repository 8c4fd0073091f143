package hpyp

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"
)

// Model ties the sequence, the context trie, the restaurant family and the
// hyperparameters together. It never owns the sequence; the caller keeps it
// (and must keep it across save/load, since the persisted file holds no
// sequence data).
type Model struct {
	seq    []int
	nodes  *NodeManager
	params Parameters
	rng    *rand.Rand
	base   float64 // uniform base measure over numTypes dishes
	built  bool
	sweeps int
}

// NewModel validates that every symbol fits the manager's vocabulary. The
// seed fixes the sampling stream; equal seeds and inputs reproduce runs.
func NewModel(seq []int, nodes *NodeManager, params Parameters, seed int64) (*Model, error) {
	for i, sym := range seq {
		if sym < 0 || sym >= nodes.NumTypes() {
			return nil, configErrorf("symbol %d at position %d outside [0, %d)", sym, i, nodes.NumTypes())
		}
	}
	return &Model{
		seq:    seq,
		nodes:  nodes,
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
		base:   1 / float64(nodes.NumTypes()),
	}, nil
}

func (m *Model) NodeManager() *NodeManager { return m.nodes }

// context returns the conditioning symbols for position end of the window
// starting at start, most recent first, truncated at maxDepth.
func (m *Model) context(start, end int) []int {
	depth := end - start
	if depth > m.nodes.MaxDepth() {
		depth = m.nodes.MaxDepth()
	}
	ctx := make([]int, depth)
	for i := 0; i < depth; i++ {
		ctx[i] = m.seq[end-1-i]
	}
	return ctx
}

// probabilityPath evaluates the backoff recursion along path for dish,
// root first. Entry 0 is the base probability; entry k+1 the predictive at
// path[k].
func (m *Model) probabilityPath(path []*Node, dish int) []float64 {
	probs := make([]float64, len(path)+1)
	probs[0] = m.base
	for k, n := range path {
		probs[k+1] = n.rest.Probability(dish, probs[k],
			m.params.Discount(n.depth), m.params.Concentration(n.depth))
	}
	return probs
}

// insertObservation seats the observation at the leaf of path, propagating
// new tables up the chain as virtual customers.
func (m *Model) insertObservation(path []*Node, dish int) {
	probs := m.probabilityPath(path, dish)
	w := 1.0
	for k := len(path) - 1; k >= 0; k-- {
		n := path[k]
		w = n.rest.AddCustomer(dish, probs[k],
			m.params.Discount(n.depth), m.params.Concentration(n.depth), w, m.rng)
		if w <= countEpsilon {
			break
		}
	}
}

// removeObservation is the structural inverse of insertObservation: closed
// tables propagate up as virtual customer removals.
func (m *Model) removeObservation(path []*Node, dish int) {
	w := 1.0
	for k := len(path) - 1; k >= 0; k-- {
		n := path[k]
		w = n.rest.RemoveCustomer(dish, m.params.Discount(n.depth), w, m.rng)
		if w <= countEpsilon {
			break
		}
	}
	m.nodes.PruneEmptyLeaves(path)
}

// BuildTree seats every position in [0, stop) once, seeding the trie before
// the first Gibbs sweep.
func (m *Model) BuildTree(stop int) {
	for i := 0; i < stop; i++ {
		path := m.nodes.ResolvePath(m.context(0, i))
		m.insertObservation(path, m.seq[i])
	}
	m.built = true
}

// RunGibbsSampler performs one sweep: every position is removed from its
// context path and reseated from the current predictive distribution, in
// order. The first call seeds the tree instead of reseating. When
// resampleHyperparameters is set, (d, theta) are re-drawn per depth from
// statistics aggregated after the sweep.
func (m *Model) RunGibbsSampler(resampleHyperparameters bool) error {
	if !m.built {
		m.BuildTree(len(m.seq))
	} else {
		for i := 0; i < len(m.seq); i++ {
			ctx := m.context(0, i)
			path := m.nodes.ResolvePath(ctx)
			m.removeObservation(path, m.seq[i])
			// removal may have pruned leaves; re-resolve before seating
			path = m.nodes.ResolvePath(ctx)
			m.insertObservation(path, m.seq[i])
		}
	}
	m.sweeps++

	if resampleHyperparameters {
		if err := m.params.Resample(m.aggregateStatistics()); err != nil {
			return err
		}
		// the draw replaced the per-depth discounts; Stirling tables cached
		// for the old values are dead weight
		keep := make([]float64, m.nodes.MaxDepth()+1)
		for k := range keep {
			keep[k] = m.params.Discount(k)
		}
		retainStirling(keep)
	}
	logrus.WithFields(logrus.Fields{
		"sweep": m.sweeps,
		"nodes": m.nodes.NumNodes(),
	}).Debug("gibbs sweep complete")
	return nil
}

// ResampleSeating re-draws per-dish table counts in closed form for
// representations that support it (the compact variants), walking the tree
// root first so parent adjustments precede their children's resampling.
func (m *Model) ResampleSeating() {
	m.nodes.VisitDFS(func(n *Node) {
		rs, ok := n.rest.(tableCountResampler)
		if !ok {
			return
		}
		parent := m.nodes.Parent(n)
		var parentRest Restaurant
		parentD, parentTheta := 0.0, 0.0
		if parent != nil {
			parentRest = parent.rest
			parentD = m.params.Discount(parent.depth)
			parentTheta = m.params.Concentration(parent.depth)
		}
		rs.resampleTableCounts(parentRest, m.base,
			m.params.Discount(n.depth), m.params.Concentration(n.depth),
			parentD, parentTheta, m.rng)
	})
}

// aggregateStatistics collects per-depth restaurant statistics for
// hyperparameter resampling.
func (m *Model) aggregateStatistics() [][]NodeStatistics {
	out := make([][]NodeStatistics, m.nodes.MaxDepth()+1)
	m.nodes.VisitDFS(func(n *Node) {
		ns := NodeStatistics{
			Customers: n.rest.Customers(),
			Tables:    n.rest.Tables(),
		}
		for _, dish := range n.rest.Dishes() {
			if sizes := n.rest.TableSizes(dish); sizes != nil {
				ns.TableSizes = append(ns.TableSizes, sizes)
			}
		}
		out[n.depth] = append(out[n.depth], ns)
	})
	return out
}

// ComputeLosses sums -log2 of the predictive probability of each observed
// symbol over the half-open range, evaluated against the current seating
// with no net mutation.
func (m *Model) ComputeLosses(start, stop int) (float64, error) {
	losses, err := m.ComputeLossVector(start, stop)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, l := range losses {
		total += l
	}
	return total, nil
}

// ComputeLossVector returns the per-position losses in bits.
func (m *Model) ComputeLossVector(start, stop int) ([]float64, error) {
	if start < 0 || stop > len(m.seq) || start > stop {
		return nil, configErrorf("loss range [%d,%d) outside sequence of length %d", start, stop, len(m.seq))
	}
	losses := make([]float64, 0, stop-start)
	for i := start; i < stop; i++ {
		path := m.nodes.LongestSuffixPath(m.context(start, i))
		probs := m.probabilityPath(path, m.seq[i])
		p := probs[len(probs)-1]
		if math.IsNaN(p) || p <= 0 {
			return nil, numericErrorf("predictive probability %v at position %d", p, i)
		}
		losses = append(losses, -math.Log2(p))
	}
	return losses, nil
}

// PredictiveDistribution returns the next-symbol distribution given the
// context in [contextStart, contextEnd), one probability per dish.
func (m *Model) PredictiveDistribution(contextStart, contextEnd int) ([]float64, error) {
	if contextStart < 0 || contextEnd > len(m.seq) || contextStart > contextEnd {
		return nil, configErrorf("context range [%d,%d) outside sequence of length %d", contextStart, contextEnd, len(m.seq))
	}
	path := m.nodes.LongestSuffixPath(m.context(contextStart, contextEnd))
	dist := make([]float64, m.nodes.NumTypes())
	sum := 0.0
	for dish := range dist {
		probs := m.probabilityPath(path, dish)
		p := probs[len(probs)-1]
		if math.IsNaN(p) || p < 0 {
			return nil, numericErrorf("predictive probability %v for dish %d", p, dish)
		}
		dist[dish] = p
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, numericErrorf("predictive distribution sums to %v", sum)
	}
	return dist, nil
}

// Predict returns the most probable next symbol for the context.
func (m *Model) Predict(contextStart, contextEnd int) (int, error) {
	dist, err := m.PredictiveDistribution(contextStart, contextEnd)
	if err != nil {
		return 0, err
	}
	best := 0
	for dish, p := range dist {
		if p > dist[best] {
			best = dish
		}
	}
	return best, nil
}

// Sample draws a next symbol from the predictive distribution.
func (m *Model) Sample(contextStart, contextEnd int) (int, error) {
	dist, err := m.PredictiveDistribution(contextStart, contextEnd)
	if err != nil {
		return 0, err
	}
	target := m.rng.Float64()
	acc := 0.0
	for dish, p := range dist {
		acc += p
		if acc > target {
			return dish, nil
		}
	}
	return len(dist) - 1, nil
}

// CheckConsistency verifies every restaurant's internal invariants plus the
// cross-level one: a node's customer count per dish must cover the summed
// table counts of its children for that dish.
func (m *Model) CheckConsistency() bool {
	consistent := true
	m.nodes.VisitDFS(func(n *Node) {
		if !n.rest.CheckConsistency() {
			logrus.WithField("depth", n.depth).Warn("restaurant fails internal consistency")
			consistent = false
		}
		childTables := make(map[int]float64)
		for _, child := range m.nodes.Children(n) {
			for _, dish := range child.rest.Dishes() {
				childTables[dish] += child.rest.TableCount(dish)
			}
		}
		for dish, t := range childTables {
			if n.rest.CustomerCount(dish)+1e-6 < t {
				logrus.WithFields(logrus.Fields{
					"depth": n.depth,
					"dish":  dish,
				}).Warn("child tables exceed parent customers")
				consistent = false
			}
		}
	})
	return consistent
}

// String renders the tree as an indented DFS dump with per-node seating
// summaries. Diagnostic only; the persisted format is the Serializer's.
func (m *Model) String() string {
	var b strings.Builder
	m.nodes.VisitDFS(func(n *Node) {
		b.WriteString(strings.Repeat(" ", n.depth))
		if n.parent == noNode {
			b.WriteString("(root)")
		} else {
			fmt.Fprintf(&b, "[%d]", n.symbol)
		}
		fmt.Fprintf(&b, " c=%.4g t=%.4g dishes=%d\n",
			n.rest.Customers(), n.rest.Tables(), len(n.rest.Dishes()))
	})
	return b.String()
}
