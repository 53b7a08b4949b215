package analytics

import (
	"fmt"
	"testing"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"

	"github.com/stretchr/testify/assert"
)

func TestLinearProjector_exactOnLinearSeries(t *testing.T) {
	// w(t) = 70 - 0.1t on 20 consecutive days
	var observations []logstore.Observation
	for i := 0; i < 20; i++ {
		day := fmt.Sprintf("2024-02-%02d", i+1)
		observations = append(observations, obs(day, 70-0.1*float64(i)))
	}
	s := NewNormalizer(7).Normalize(observations, date("2024-03-21"))

	// 2024-03-21 is 49 elapsed days from the series start
	projected := NewLinearProjector().Project(s, date("2024-03-21"))
	assert.InDelta(t, 70-0.1*49, projected, 1e-6)
}

func TestLinearProjector_degenerate(t *testing.T) {
	projector := NewLinearProjector()

	// empty series
	assert.Equal(t, 0.0, projector.Project(&Series{}, date("2024-03-01")))

	// single point -> last known weight, no fit
	s := NewNormalizer(7).Normalize(
		[]logstore.Observation{obs("2024-01-01", 77.7)},
		date("2024-03-01"),
	)
	assert.Equal(t, 77.7, projector.Project(s, date("2024-03-01")))
}
