package marks

import (
	"github.com/openmarks/markbook-api/internal/models"
)

// distributionBins is the fixed number of partitions over the 0–100 range.
const distributionBins = 6

// Distribution partitions final marks into exactly six fixed-width bins over
// 0–100, regardless of data sparsity. Marks below 0 land in the first bin
// and marks of 100 or above in the last.
func Distribution(finals []float64) []models.DistributionBin {
	width := 100.0 / distributionBins
	bins := make([]models.DistributionBin, distributionBins)
	for i := range bins {
		bins[i].Low = Round1(float64(i) * width)
		bins[i].High = Round1(float64(i+1) * width)
	}
	bins[distributionBins-1].High = 100

	for _, v := range finals {
		idx := int(v / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= distributionBins {
			idx = distributionBins - 1
		}
		bins[idx].Count++
	}
	return bins
}
