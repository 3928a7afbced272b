package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"cancer-detect/internal/dataset"
)

// classMeans are approximate per-class feature means of the real WDBC data,
// in dataset.FeatureNames order: malignant first, benign second.
var classMeans = [30][2]float64{
	{17.46, 12.15}, {21.60, 17.91}, {115.4, 78.08}, {978.4, 462.8}, {0.1029, 0.0925},
	{0.1452, 0.0801}, {0.1608, 0.0461}, {0.0880, 0.0257}, {0.1929, 0.1742}, {0.0627, 0.0629},
	{0.6091, 0.2841}, {1.211, 1.220}, {4.324, 2.000}, {72.67, 21.14}, {0.0068, 0.0072},
	{0.0323, 0.0214}, {0.0418, 0.0260}, {0.0151, 0.0099}, {0.0205, 0.0206}, {0.0041, 0.0036},
	{21.13, 13.38}, {29.32, 23.52}, {141.4, 87.01}, {1422, 558.9}, {0.1448, 0.1250},
	{0.3748, 0.1827}, {0.4506, 0.1662}, {0.1822, 0.0744}, {0.3235, 0.2702}, {0.0915, 0.0794},
}

func main() {
	var (
		out       = flag.String("out", "data/wdbc.data", "Output file in wdbc.data layout")
		rows      = flag.Int("rows", 569, "Number of samples to generate")
		malignant = flag.Float64("malignant", 0.373, "Fraction of malignant samples")
		spread    = flag.Float64("spread", 0.2, "Log-normal spread around the class mean")
		seed      = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	if *rows < 2 {
		log.Fatalf("need at least 2 rows, got %d", *rows)
	}

	fmt.Printf("Generating synthetic WDBC data...\n")
	fmt.Printf("  Rows: %d\n", *rows)
	fmt.Printf("  Malignant fraction: %.3f\n", *malignant)
	fmt.Printf("  Output: %s\n", *out)

	ds := generate(*rows, *malignant, *spread, rand.New(rand.NewSource(*seed)))

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	if err := dataset.WriteWDBC(f, ds); err != nil {
		log.Fatalf("Failed to write data: %v", err)
	}

	var m int
	for _, y := range ds.Y {
		if y == dataset.Malignant {
			m++
		}
	}
	fmt.Printf("✓ Wrote %d samples (%d malignant, %d benign)\n", ds.Len(), m, ds.Len()-m)
}

func generate(n int, malignantFrac, spread float64, rng *rand.Rand) *dataset.Dataset {
	ds := &dataset.Dataset{
		FeatureNames: dataset.Names(),
		X:            make([][]float64, n),
		Y:            make([]int, n),
	}
	for i := 0; i < n; i++ {
		class := dataset.Benign
		if rng.Float64() < malignantFrac {
			class = dataset.Malignant
		}
		// one shared size factor keeps radius, perimeter and area correlated
		size := rng.NormFloat64() * spread
		row := make([]float64, len(classMeans))
		for j, means := range classMeans {
			noise := 0.5*size + math.Sqrt(0.75)*rng.NormFloat64()*spread
			row[j] = means[class] * math.Exp(noise)
		}
		ds.X[i] = row
		ds.Y[i] = class
	}
	return ds
}
