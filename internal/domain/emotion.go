package domain

import (
	"sort"
	"time"
)

// Labels is the label set the facial emotion classifier usually returns.
// It only drives display ordering; samples keep whatever label the classifier produced.
var Labels = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

type EmotionSample struct {
	At      time.Time `json:"at"`
	Emotion string    `json:"emotion"`
}

type EmotionDuration struct {
	Emotion  string        `json:"emotion"`
	Duration time.Duration `json:"-"`
}

func (d EmotionDuration) Seconds() float64 {
	return d.Duration.Seconds()
}

type DurationSummary map[string]time.Duration

func (s DurationSummary) Total() time.Duration {
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return total
}

// Rows orders by duration desc, then label.
func (s DurationSummary) Rows() []EmotionDuration {
	out := make([]EmotionDuration, 0, len(s))
	for emotion, d := range s {
		out = append(out, EmotionDuration{Emotion: emotion, Duration: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Duration != out[j].Duration {
			return out[i].Duration > out[j].Duration
		}
		return out[i].Emotion < out[j].Emotion
	})
	return out
}
