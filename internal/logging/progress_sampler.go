package logging

// ProgressSampler thins a stream of percent readings down to one log line per
// bucket. The first reading always passes, and so does the first one at 100%.
type ProgressSampler struct {
	step float64
	last int
	done bool
}

// NewProgressSampler returns a sampler with step-percent buckets (5 when step
// is not positive).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, last: -1}
}

// ShouldLog reports whether percent starts a new bucket. Negative readings
// (unknown duration) never pass once something has been logged.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	if s == nil {
		return true
	}
	if percent < 0 {
		if s.last >= 0 {
			return false
		}
		s.last = 0
		return true
	}
	if percent >= 100 {
		if s.done {
			return false
		}
		s.done = true
		s.last = int(100 / s.step)
		return true
	}
	bucket := int(percent / s.step)
	if bucket <= s.last {
		return false
	}
	s.last = bucket
	return true
}

// Reset forgets all readings so the sampler can follow the next file.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.last = -1
	s.done = false
}
