package metrics

import (
	"hash/fnv"
	"math"
	"sync/atomic"
)

// SamplingObserver forwards a fraction of events. Events tagged with a
// conversation_id are kept or dropped per conversation, so a sampled
// conversation keeps every turn. Untagged events are thinned by count.
// Names passed as always bypass sampling.
type SamplingObserver struct {
	inner  Observer
	rate   float64
	seen   atomic.Uint64
	always map[string]bool
}

func NewSamplingObserver(inner Observer, rate float64, always ...string) *SamplingObserver {
	keep := make(map[string]bool, len(always))
	for _, name := range always {
		keep[name] = true
	}
	return &SamplingObserver{inner: inner, rate: min(max(rate, 0), 1), always: keep}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if s.keep(ev) {
		s.inner.RecordEvent(ev)
	}
}

func (s *SamplingObserver) keep(ev MetricsEvent) bool {
	switch {
	case s.always[ev.Name], s.rate >= 1:
		return true
	case s.rate <= 0:
		return false
	}
	if id := ev.Tags["conversation_id"]; id != "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(id))
		return float64(h.Sum32()%10000) < s.rate*10000
	}
	n := float64(s.seen.Add(1))
	return math.Floor(n*s.rate) > math.Floor((n-1)*s.rate)
}
