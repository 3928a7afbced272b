package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// FeatureImportance contains the importance of a single feature
type FeatureImportance struct {
	Name        string  `json:"name"`
	Coefficient float64 `json:"coefficient"`
	// Importance is |coefficient| on the standardized input.
	Importance float64 `json:"importance"`
	// PermutationScore is the drop in test accuracy when the feature's values
	// are shuffled across samples.
	PermutationScore float64 `json:"permutation_score"`
}

// rankImportance orders features by absolute coefficient, largest first.
// permutation may be nil.
func rankImportance(names []string, coef, permutation []float64) []FeatureImportance {
	out := make([]FeatureImportance, len(coef))
	for j, c := range coef {
		name := fmt.Sprintf("feature_%d", j)
		if j < len(names) {
			name = names[j]
		}
		out[j] = FeatureImportance{Name: name, Coefficient: c, Importance: math.Abs(c)}
		if j < len(permutation) {
			out[j].PermutationScore = permutation[j]
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}

// permutationImportance measures, per feature, how much accuracy on (X, y)
// drops when that column is shuffled. The shuffle is seeded so results are
// reproducible for a given model and split.
func permutationImportance(m *Model, X [][]float64, y []int, seed int64) ([]float64, error) {
	base, err := Evaluate(m, X, y)
	if err != nil {
		return nil, err
	}

	n, d := len(X), m.NumFeatures()
	rng := rand.New(rand.NewSource(seed))
	permuted := make([][]float64, n)
	for i := range X {
		permuted[i] = append([]float64(nil), X[i]...)
	}

	scores := make([]float64, d)
	for j := 0; j < d; j++ {
		perm := rng.Perm(n)
		for i := range permuted {
			permuted[i][j] = X[perm[i]][j]
		}
		ev, err := Evaluate(m, permuted, y)
		if err != nil {
			return nil, err
		}
		scores[j] = base.Accuracy - ev.Accuracy
		for i := range permuted {
			permuted[i][j] = X[i][j]
		}
	}
	return scores, nil
}
