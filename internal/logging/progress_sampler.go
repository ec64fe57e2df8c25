package logging

// ProgressSampler suppresses repetitive progress logs. With a known total it
// emits when the percentage crosses a bucket boundary; with an unknown total it
// emits every step processed items.
type ProgressSampler struct {
	bucketSize float64
	step       int
	lastBucket int
	lastCount  int
}

// NewProgressSampler constructs a sampler that emits every bucketSize percent
// (default 10) or every step items (default 500) when the total is unknown.
func NewProgressSampler(bucketSize float64, step int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	if step <= 0 {
		step = 500
	}
	return &ProgressSampler{bucketSize: bucketSize, step: step, lastBucket: -1}
}

// ShouldLog reports whether progress at processed items should be logged.
// Percent is negative when the total is unknown.
func (s *ProgressSampler) ShouldLog(percent float64, processed int) bool {
	if s == nil {
		return true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			s.lastCount = processed
			return true
		}
		return false
	}
	if processed-s.lastCount >= s.step {
		s.lastCount = processed
		return true
	}
	return false
}

// Reset clears the sampler state when a new run starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.lastCount = 0
}
