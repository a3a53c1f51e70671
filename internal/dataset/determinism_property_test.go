package dataset

import (
	"context"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSizePlanProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	params := SizeParams{
		TotalBytes: 300 * mb,
		FileCount:  15,
		MinBytes:   2 * mb,
		MaxBytes:   60 * mb,
	}

	properties.Property("random plan hits the budget within bounds", prop.ForAll(
		func(seed int64) bool {
			sizes, err := FileSizes("random", params, rand.New(rand.NewSource(seed)))
			if err != nil || len(sizes) != params.FileCount {
				return false
			}
			var total int64
			for _, s := range sizes {
				if s < params.MinBytes || s > params.MaxBytes {
					return false
				}
				total += s
			}
			return total == params.TotalBytes
		},
		gen.Int64(),
	))

	properties.Property("identical seeds yield identical plans", prop.ForAll(
		func(seed int64) bool {
			a, _ := FileSizes("mixed", params, rand.New(rand.NewSource(seed)))
			b, _ := FileSizes("mixed", params, rand.New(rand.NewSource(seed)))
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return len(a) == len(b)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestGeneratorDeterminismProperty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dataset generation property in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 8
	properties := gopter.NewProperties(parameters)

	properties.Property("same seed produces byte-identical datasets", prop.ForAll(
		func(seed int64) bool {
			cfg := smallDataset(seed)

			a, err := NewGenerator(cfg, t.TempDir()).Generate(context.Background(), false)
			if err != nil {
				return false
			}
			b, err := NewGenerator(cfg, t.TempDir()).Generate(context.Background(), false)
			if err != nil {
				return false
			}

			if len(a.Files) != len(b.Files) {
				return false
			}
			for i := range a.Files {
				if a.Files[i] != b.Files[i] {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 1<<31),
	))

	properties.TestingRun(t)
}
