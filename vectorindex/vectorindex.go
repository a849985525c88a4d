package vectorindex

import (
	"context"
	"math"
	"sort"
)

// Metadata keys shared by every provider. Records are discriminated by
// doc_type so a single collection can hold both corpora.
const (
	MetaDocType  = "doc_type"
	MetaContent  = "content"
	MetaResponse = "response"
	MetaSource   = "source"
	MetaUserId   = "userId"

	DocTypeKnowledge    = "knowledge_base"
	DocTypeConversation = "conversation"
)

// Match is one ranked result of a similarity query.
type Match struct {
	Id       string
	Score    float32
	Metadata map[string]any
}

// Index is a namespace-partitioned similarity index. Upsert replaces by id
// within a namespace. Query returns matches sorted by descending score with
// ties broken by id; implementations must bound every remote call with a
// timeout.
type Index interface {
	Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]Match, error)
}

// SortMatches orders matches by descending score, then ascending id so that
// equal scores rank deterministically across providers.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Id < matches[j].Id
	})
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is empty or the dimensions disagree.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
