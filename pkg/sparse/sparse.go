package sparse

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/soundprediction/retrievo/pkg/types"
)

// BM25 Okapi parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// Ranked is a lexical retrieval candidate with its 1-based rank.
type Ranked struct {
	ChunkID string
	Rank    int
	Score   float64
}

type document struct {
	chunk  *types.Chunk
	length int
}

// Index is an in-memory BM25 inverted index over chunks.
type Index struct {
	mu sync.RWMutex

	docs        map[string]*document
	postings    map[string]map[string]int
	totalLength int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		docs:     make(map[string]*document),
		postings: make(map[string]map[string]int),
	}
}

// Tokenize lowercases text and splits it on any run of non-alphanumeric
// characters.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Add indexes a chunk, replacing any previous chunk with the same id.
func (x *Index) Add(chunk *types.Chunk) {
	if chunk == nil || chunk.ID == "" {
		return
	}
	tokens := Tokenize(chunk.Text)

	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeLocked(chunk.ID)

	x.docs[chunk.ID] = &document{chunk: chunk, length: len(tokens)}
	x.totalLength += len(tokens)
	for _, term := range tokens {
		tf, ok := x.postings[term]
		if !ok {
			tf = make(map[string]int)
			x.postings[term] = tf
		}
		tf[chunk.ID]++
	}
}

// Remove drops a chunk from the index. Removing an unknown id is a no-op.
func (x *Index) Remove(chunkID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(chunkID)
}

func (x *Index) removeLocked(chunkID string) {
	doc, ok := x.docs[chunkID]
	if !ok {
		return
	}

	for _, term := range Tokenize(doc.chunk.Text) {
		if tf, ok := x.postings[term]; ok {
			delete(tf, chunkID)
			if len(tf) == 0 {
				delete(x.postings, term)
			}
		}
	}
	x.totalLength -= doc.length
	delete(x.docs, chunkID)
}

// Get returns the stored chunk for an id. This is the chunk catalog used to
// hydrate candidates surfaced by other retrieval stages.
func (x *Index) Get(chunkID string) (*types.Chunk, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	doc, ok := x.docs[chunkID]
	if !ok {
		return nil, false
	}
	return doc.chunk, true
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search returns the top-k chunks for the query by BM25 score, rank 1 being
// the best match. Chunks scoring zero or below are excluded; ties are broken
// by chunk id ascending.
func (x *Index) Search(query string, k int) []Ranked {
	if k <= 0 {
		return nil
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.docs)
	if n == 0 {
		return nil
	}
	avgLength := float64(x.totalLength) / float64(n)

	seen := make(map[string]bool, len(terms))
	scores := make(map[string]float64)
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		tf, ok := x.postings[term]
		if !ok {
			continue
		}

		df := len(tf)
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

		for chunkID, freq := range tf {
			doc := x.docs[chunkID]
			norm := k1 * (1 - b + b*float64(doc.length)/avgLength)
			scores[chunkID] += idf * float64(freq) * (k1 + 1) / (float64(freq) + norm)
		}
	}

	ranked := make([]Ranked, 0, len(scores))
	for chunkID, score := range scores {
		if score <= 0 {
			continue
		}
		ranked = append(ranked, Ranked{ChunkID: chunkID, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
