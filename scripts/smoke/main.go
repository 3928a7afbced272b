package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cancer-detect/internal/dataset"

	"github.com/go-resty/resty/v2"
)

type prediction struct {
	Prediction    int     `json:"prediction"`
	Label         string  `json:"label"`
	Confidence    float64 `json:"confidence"`
	Probabilities struct {
		Malignant float64 `json:"malignant"`
		Benign    float64 `json:"benign"`
	} `json:"probabilities"`
}

type apiError struct {
	Error string `json:"error"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:5000", "Service base URL")
		dsPath  = flag.String("dataset", "data/wdbc.data", "Labeled samples to replay")
		samples = flag.Int("n", 20, "Number of samples to send")
		timeout = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
	)
	flag.Parse()

	fmt.Println("Testing prediction service")
	fmt.Println("==========================")
	fmt.Printf("Service: %s\n", *baseURL)

	client := resty.New().SetBaseURL(*baseURL).SetTimeout(*timeout)
	ctx := context.Background()

	// Test 1: health
	var health struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	resp, err := client.R().SetContext(ctx).SetResult(&health).Get("/api/health")
	if err != nil || resp.IsError() {
		log.Fatalf("✗ health check failed: %v (status %d)", err, resp.StatusCode())
	}
	if !health.ModelLoaded {
		log.Fatalf("✗ service is up but no model is loaded")
	}
	fmt.Println("✓ Service healthy, model loaded")

	// Test 2: contract errors
	var bad apiError
	resp, err = client.R().SetContext(ctx).SetBody(map[string]interface{}{"features": []float64{1, 2, 3}}).
		SetError(&bad).Post("/api/predict")
	if err != nil || resp.StatusCode() != 400 {
		log.Fatalf("✗ expected 400 for a short vector, got %d: %v", resp.StatusCode(), err)
	}
	fmt.Printf("✓ Short vector rejected: %s\n", bad.Error)

	// Test 3: replay labeled samples
	f, err := os.Open(*dsPath)
	if err != nil {
		log.Fatalf("✗ open dataset: %v", err)
	}
	ds, err := dataset.Parse(f)
	f.Close()
	if err != nil {
		log.Fatalf("✗ parse dataset: %v", err)
	}

	n := *samples
	if n > ds.Len() {
		n = ds.Len()
	}
	var correct int
	for i := 0; i < n; i++ {
		var got prediction
		resp, err := client.R().SetContext(ctx).
			SetBody(map[string]interface{}{"features": ds.X[i]}).
			SetResult(&got).
			Post("/api/predict")
		if err != nil || resp.IsError() {
			log.Fatalf("✗ sample %d: %v (status %d: %s)", i, err, resp.StatusCode(), resp.String())
		}
		mark := "✗"
		if got.Prediction == ds.Y[i] {
			correct++
			mark = "✓"
		}
		fmt.Printf("  %s sample %3d: %-9s %6.2f%% (actual %s)\n", mark, i, got.Label, got.Confidence, dataset.LabelName(ds.Y[i]))
	}
	fmt.Printf("\nAgreement: %d/%d (%.1f%%)\n", correct, n, 100*float64(correct)/float64(n))
}
