package handler

import (
	"context"
	"math"
	"strings"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
)

const (
	commentsInput  = "comments.txt"
	commentsOutput = "comments-similar.txt"
)

// SimilarComments finds the most similar pair of lines in comments.txt by
// cosine similarity of their embeddings.
type SimilarComments struct {
	sb    *sandbox.Sandbox
	model llm.LLMClient
}

func NewSimilarComments(sb *sandbox.Sandbox, model llm.LLMClient) *SimilarComments {
	return &SimilarComments{sb: sb, model: model}
}

func (h *SimilarComments) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	data, err := h.sb.ReadFile(commentsInput)
	if err != nil {
		return nil, err
	}

	var comments []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			comments = append(comments, line)
		}
	}
	if len(comments) < 2 {
		return nil, taskerr.Execution("%s needs at least two comments, found %d", commentsInput, len(comments))
	}
	if err := requireModel(h.model); err != nil {
		return nil, err
	}

	vecs, err := h.model.Embed(ctx, comments)
	if err != nil {
		return nil, modelError(err, "embedding")
	}
	if len(vecs) != len(comments) {
		return nil, taskerr.Execution("got %d embeddings for %d comments", len(vecs), len(comments))
	}

	i, j, err := mostSimilarPair(vecs)
	if err != nil {
		return nil, err
	}

	out := comments[i] + "\n" + comments[j] + "\n"
	if _, err := h.sb.WriteFile(commentsOutput, []byte(out)); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: "most similar comments found",
		Output: commentsOutput,
	}, nil
}

// mostSimilarPair compares every pair in index order. The comparison is
// strict, so the earliest pair wins a tie.
func mostSimilarPair(vecs [][]float64) (int, int, error) {
	bestI, bestJ := -1, -1
	best := math.Inf(-1)
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			sim, err := cosine(vecs[i], vecs[j])
			if err != nil {
				return 0, 0, err
			}
			if bestI < 0 || sim > best {
				best, bestI, bestJ = sim, i, j
			}
		}
	}
	return bestI, bestJ, nil
}

// cosine returns 0 when either vector has zero length.
func cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, taskerr.Execution("embedding dimensions differ (%d vs %d)", len(a), len(b))
	}
	var dot, na, nb float64
	for k := range a {
		dot += a[k] * b[k]
		na += a[k] * a[k]
		nb += b[k] * b[k]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
