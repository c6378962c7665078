package audio

import "math"

// RMSEnergy computes the root-mean-square energy of normalized samples.
// Returns a value between 0.0 and 1.0.
func RMSEnergy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// PeakAmplitude returns the maximum absolute amplitude in the block.
// Returns a value between 0.0 and 1.0 for in-range input.
func PeakAmplitude(samples []float32) float64 {
	var maxAbs float64
	for _, v := range samples {
		abs := math.Abs(float64(v))
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs
}
