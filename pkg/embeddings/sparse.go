package embeddings

import (
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// sparseDimension bounds the hashed vocabulary. Collisions are resolved by
// keeping the higher score.
const sparseDimension = 30000

// Word characters including German umlauts and eszett-adjacent vowels.
var sparseTokenRe = regexp.MustCompile(`[a-zA-ZäöüÄÖÜß]+`)

// SparseEncode turns text into a hashed term-frequency sparse vector for
// hybrid retrieval. Tokens shorter than three characters are dropped; each
// kept token scores (1 + ln(count)) / sqrt(totalKept). Indices come back
// sorted ascending with values aligned. Empty or token-free input yields
// empty slices.
func SparseEncode(text string) ([]uint32, []float32) {
	tokens := sparseTokenRe.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int)
	total := 0
	for _, token := range tokens {
		// Length counts characters, not bytes; umlaut tokens are multi-byte.
		if utf8.RuneCountInString(token) > 2 {
			counts[token]++
			total++
		}
	}
	if total == 0 {
		return []uint32{}, []float32{}
	}

	norm := math.Sqrt(float64(total))
	scores := make(map[uint32]float32, len(counts))
	for token, count := range counts {
		idx := sparseHash(token)
		score := float32((1 + math.Log(float64(count))) / norm)
		if existing, ok := scores[idx]; !ok || score > existing {
			scores[idx] = score
		}
	}

	indices := make([]uint32, 0, len(scores))
	for idx := range scores {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = scores[idx]
	}
	return indices, values
}

func sparseHash(token string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(token))
	return h.Sum32() % sparseDimension
}
