package emotionlog

import (
	"sync"
	"time"

	"emobot/internal/domain"
)

// Log is an append-only, chronologically ordered list of emotion samples.
// Callers append with non-decreasing timestamps; the log never reorders.
type Log struct {
	mu      sync.RWMutex
	samples []domain.EmotionSample
}

func New() *Log {
	return &Log{}
}

func (l *Log) Record(emotion string, at time.Time) domain.EmotionSample {
	sample := domain.EmotionSample{At: at, Emotion: emotion}
	l.mu.Lock()
	l.samples = append(l.samples, sample)
	l.mu.Unlock()
	return sample
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

func (l *Log) Latest() (domain.EmotionSample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.samples) == 0 {
		return domain.EmotionSample{}, false
	}
	return l.samples[len(l.samples)-1], true
}

func (l *Log) Samples() []domain.EmotionSample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.EmotionSample, len(l.samples))
	copy(out, l.samples)
	return out
}

func (l *Log) Summarize() domain.DurationSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Summarize(l.samples)
}

// Summarize credits each sample with the gap until the next sample; the last
// sample gets zero. Negative gaps (clock went backwards) count as zero.
func Summarize(samples []domain.EmotionSample) domain.DurationSummary {
	out := make(domain.DurationSummary)
	for i, s := range samples {
		var d time.Duration
		if i < len(samples)-1 {
			d = samples[i+1].At.Sub(s.At)
			if d < 0 {
				d = 0
			}
		}
		out[s.Emotion] += d
	}
	return out
}
