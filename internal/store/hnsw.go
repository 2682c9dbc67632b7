package store

import (
	"math"
	"math/rand"

	"github.com/coder/hnsw"
)

// annIndex is the in-memory HNSW graph over chunk embeddings. It is
// rebuilt from the database on open and kept in step with every write.
// Callers hold the store lock.
type annIndex struct {
	graph *hnsw.Graph[uint64]

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

type annResult struct {
	ID    string
	Score float32
}

func newANNIndex() *annIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25
	// Fixed seed so the same rows always build the same graph.
	graph.Rng = rand.New(rand.NewSource(1))

	return &annIndex{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts or replaces the vector of id. Vectors must be unit length.
// Replaced nodes stay in the graph as orphans; coder/hnsw misbehaves when
// the last node is deleted.
func (a *annIndex) add(id string, vec []float32) {
	a.remove(id)

	key := a.nextKey
	a.nextKey++
	a.graph.Add(hnsw.MakeNode(key, vec))
	a.idMap[id] = key
	a.keyMap[key] = id
}

func (a *annIndex) remove(id string) {
	if key, ok := a.idMap[id]; ok {
		delete(a.keyMap, key)
		delete(a.idMap, id)
	}
}

// search returns up to k live neighbor candidates of query, best first by
// graph distance. Callers re-score them exactly.
func (a *annIndex) search(query []float32, k int) []annResult {
	if k <= 0 || len(a.idMap) == 0 {
		return nil
	}

	// Orphans occupy result slots, so widen the search by their count.
	want := min(k+a.orphans(), a.graph.Len())
	nodes := a.graph.Search(query, want)

	out := make([]annResult, 0, k)
	for _, node := range nodes {
		id, ok := a.keyMap[node.Key]
		if !ok {
			continue
		}
		out = append(out, annResult{ID: id, Score: distanceToScore(a.graph.Distance(query, node.Value))})
		if len(out) == k {
			break
		}
	}
	return out
}

func (a *annIndex) live() int { return len(a.idMap) }

func (a *annIndex) orphans() int { return a.graph.Len() - len(a.idMap) }

// distanceToScore maps cosine distance (0 identical, 2 opposite) to [0,1].
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}

// cosineScore is distanceToScore for an exact scan over unit vectors.
func cosineScore(a, b []float32) float32 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32((1 + dot) / 2)
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
