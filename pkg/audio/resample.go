package audio

// Resample converts samples captured at sourceRate to targetRate using
// nearest-neighbor decimation: each output sample i is input[floor(i*ratio)]
// with ratio = sourceRate/targetRate, so the output length is
// floor(len(input)/ratio). Matching rates pass through unchanged.
//
// This is deliberately a cheap, non-bandlimited resampler. Speech
// intelligibility tolerates the minor aliasing it introduces, and the
// latency budget favors it over a polyphase filter. Swapping in a
// bandlimited implementation behind this signature would not affect the
// bridge.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil
	}
	if sourceRate == targetRate {
		return samples
	}
	// Integer arithmetic keeps the length exactly floor(L*target/source);
	// float division can land one sample short when the quotient is whole.
	n := len(samples) * targetRate / sourceRate
	out := make([]float32, n)
	for i := range out {
		src := i * sourceRate / targetRate
		if src >= len(samples) {
			src = len(samples) - 1
		}
		out[i] = samples[src]
	}
	return out
}
