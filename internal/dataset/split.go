package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// Split shuffles the rows with a seeded source and cuts off ceil(testSize*n)
// of them as the test partition. Rows are shared with ds, not copied.
func Split(ds *Dataset, testSize float64, seed int64) (train, test *Dataset, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0,1), got %f", testSize)
	}
	n := ds.Len()
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, fmt.Errorf("cannot split %d samples with test size %.2f", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	test = subset(ds, perm[:nTest])
	train = subset(ds, perm[nTest:])
	return train, test, nil
}

func subset(ds *Dataset, idx []int) *Dataset {
	out := &Dataset{
		FeatureNames: ds.FeatureNames,
		X:            make([][]float64, len(idx)),
		Y:            make([]int, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = ds.X[j]
		out.Y[i] = ds.Y[j]
	}
	return out
}
