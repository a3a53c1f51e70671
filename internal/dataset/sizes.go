package dataset

import (
	"fmt"
	"math/rand"
)

// SizeParams bounds the file-size plan for a dataset.
type SizeParams struct {
	TotalBytes int64
	FileCount  int
	MinBytes   int64
	MaxBytes   int64
}

// FileSizes produces the per-file size plan for the given distribution. The
// rng must be seeded by the caller; identical parameters and seed always yield
// the identical plan.
func FileSizes(distribution string, p SizeParams, rng *rand.Rand) ([]int64, error) {
	switch distribution {
	case "fixed":
		return fixedSizes(p), nil
	case "random":
		return randomSizes(p, rng), nil
	case "mixed":
		return mixedSizes(p, rng), nil
	default:
		return nil, fmt.Errorf("unknown size distribution %q", distribution)
	}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fixedSizes gives every file the same share of the budget, clamped to bounds.
func fixedSizes(p SizeParams) []int64 {
	size := clamp(p.TotalBytes/int64(p.FileCount), p.MinBytes, p.MaxBytes)
	sizes := make([]int64, p.FileCount)
	for i := range sizes {
		sizes[i] = size
	}
	return sizes
}

// randomSizes walks files left to right, drawing each size uniformly from the
// band that keeps the remaining budget achievable given the files left and the
// per-file bounds. The last file absorbs the leftover, clamped to bounds.
func randomSizes(p SizeParams, rng *rand.Rand) []int64 {
	sizes := make([]int64, 0, p.FileCount)
	remaining := p.TotalBytes

	for i := 0; i < p.FileCount-1; i++ {
		filesLeft := int64(p.FileCount - i)
		maxAllowed := min64(p.MaxBytes, remaining-(filesLeft-1)*p.MinBytes)
		minAllowed := max64(p.MinBytes, remaining-(filesLeft-1)*p.MaxBytes)
		if minAllowed > maxAllowed {
			minAllowed = maxAllowed
		}

		size := minAllowed
		if maxAllowed > minAllowed {
			size = minAllowed + rng.Int63n(maxAllowed-minAllowed+1)
		}
		sizes = append(sizes, size)
		remaining -= size
	}

	sizes = append(sizes, clamp(remaining, p.MinBytes, p.MaxBytes))
	return sizes
}

// mixedSizes partitions files into 60% minimum-size, 30% mid-size and 10%
// maximum-size buckets (remainder to the large bucket), shuffles the order,
// then scales every size so the aggregate matches the budget. Scaling down
// re-clamps to the minimum bound, so the aggregate may deviate slightly.
func mixedSizes(p SizeParams, rng *rand.Rand) []int64 {
	small := p.MinBytes
	large := p.MaxBytes
	medium := (small + large) / 2

	nSmall := int(float64(p.FileCount) * 0.6)
	nMedium := int(float64(p.FileCount) * 0.3)
	nLarge := p.FileCount - nSmall - nMedium

	sizes := make([]int64, 0, p.FileCount)
	for i := 0; i < nSmall; i++ {
		sizes = append(sizes, small)
	}
	for i := 0; i < nMedium; i++ {
		sizes = append(sizes, medium)
	}
	for i := 0; i < nLarge; i++ {
		sizes = append(sizes, large)
	}

	rng.Shuffle(len(sizes), func(i, j int) {
		sizes[i], sizes[j] = sizes[j], sizes[i]
	})

	var current int64
	for _, s := range sizes {
		current += s
	}
	if current == 0 || current == p.TotalBytes {
		return sizes
	}

	factor := float64(p.TotalBytes) / float64(current)
	for i := range sizes {
		scaled := int64(float64(sizes[i]) * factor)
		if current > p.TotalBytes {
			scaled = max64(p.MinBytes, scaled)
		}
		sizes[i] = scaled
	}
	return sizes
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
