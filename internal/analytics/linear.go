package analytics

import (
	"math"
	"time"
)

type LinearProjector struct{}

func NewLinearProjector() *LinearProjector {
	return &LinearProjector{}
}

// Project fits an ordinary least-squares line of weight over elapsed days
// and evaluates it at the goal date. Fewer than 2 valid points degrades
// to the last known weight (0 for an empty series).
func (p *LinearProjector) Project(s *Series, goalDate time.Time) float64 {
	if s.Empty() {
		return 0
	}

	first := s.Days[0]
	var xs, ys []float64
	for i := range s.Days {
		if math.IsNaN(s.Weight[i]) {
			continue
		}
		xs = append(xs, s.Days[i].Sub(first).Seconds()/86400)
		ys = append(ys, s.Weight[i])
	}

	if len(xs) < 2 {
		return s.LastWeight()
	}

	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var ssXY, ssXX float64
	for i := range xs {
		dx := xs[i] - meanX
		ssXY += dx * (ys[i] - meanY)
		ssXX += dx * dx
	}

	if ssXX == 0 {
		// all samples on the same day
		return meanY
	}

	slope := ssXY / ssXX
	intercept := meanY - slope*meanX

	goalX := dateOnly(goalDate).Sub(first).Seconds() / 86400
	return intercept + slope*goalX
}
