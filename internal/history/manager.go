package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Entry is one weigh-in from a past competition season.
type Entry struct {
	Date       time.Time `json:"date"`
	Weight     float64   `json:"weight"`
	Label      string    `json:"label"`
	TargetDate time.Time `json:"targetDate"`
	DaysOut    int       `json:"daysOut"`
}

// Manager holds the historical competition seasons, loaded once from CSV
// at startup and grouped by season label.
type Manager struct {
	Entries      []*Entry
	LabelEntries map[string][]*Entry
}

// NewManager reads the competition history CSV. Expected columns:
// Date,Weight,Label,TargetDate with a header row. The days-out offset is
// derived once at load.
func NewManager(historyCsvReader *csv.Reader) (*Manager, error) {
	m := &Manager{}
	m.LabelEntries = make(map[string][]*Entry)

	log.Println("reading competition history CSV ...")

	header := true
	for {
		record, err := historyCsvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(record) != 4 {
			return nil, fmt.Errorf("record [%s] does not have 4 elements", record)
		}
		if header {
			header = false
			continue
		}

		// Date,Weight,Label,TargetDate
		entryDate, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("record [%s]: invalid date: %w", record, err)
		}
		var weight float64
		if _, err := fmt.Sscanf(record[1], "%f", &weight); err != nil {
			return nil, fmt.Errorf("record [%s]: invalid weight: %w", record, err)
		}
		label := record[2]
		targetDate, err := time.Parse(dateLayout, record[3])
		if err != nil {
			return nil, fmt.Errorf("record [%s]: invalid target date: %w", record, err)
		}

		entry := &Entry{
			Date:       entryDate,
			Weight:     weight,
			Label:      label,
			TargetDate: targetDate,
			DaysOut:    int(entryDate.Sub(targetDate).Hours() / 24),
		}
		m.Entries = append(m.Entries, entry)
		m.LabelEntries[label] = append(m.LabelEntries[label], entry)
	}

	for _, entries := range m.LabelEntries {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].DaysOut < entries[j].DaysOut
		})
	}

	log.Printf("competition history CSV read, %d entries, %d seasons", len(m.Entries), len(m.LabelEntries))

	return m, nil
}

// OverlayPoint is one smoothed weigh-in on the days-out axis.
type OverlayPoint struct {
	DaysOut int     `json:"daysOut"`
	Weight  float64 `json:"weight"`
	MA7     float64 `json:"ma7"`
}

// Overlay returns the per-season series aligned on days-out, smoothed
// with a 7-sample trailing mean, restricted to the final windowDays of
// the run-up (daysOut in [-windowDays, 0]).
func (m *Manager) Overlay(windowDays int) map[string][]OverlayPoint {
	overlay := make(map[string][]OverlayPoint, len(m.LabelEntries))
	for label, entries := range m.LabelEntries {
		var points []OverlayPoint
		for i, entry := range entries {
			if entry.DaysOut < -windowDays || entry.DaysOut > 0 {
				continue
			}
			start := i - 6
			if start < 0 {
				start = 0
			}
			sum := 0.0
			for j := start; j <= i; j++ {
				sum += entries[j].Weight
			}
			points = append(points, OverlayPoint{
				DaysOut: entry.DaysOut,
				Weight:  entry.Weight,
				MA7:     sum / float64(i-start+1),
			})
		}
		if len(points) > 0 {
			overlay[label] = points
		}
	}
	return overlay
}

// SeasonStats summarizes one past season.
type SeasonStats struct {
	Label       string    `json:"label"`
	TargetDate  time.Time `json:"targetDate"`
	LowWeight   float64   `json:"lowWeight"`
	LowDate     time.Time `json:"lowDate"`
	FinalWeight float64   `json:"finalWeight"`
	DeltaVsPrev *float64  `json:"deltaVsPrev,omitempty"`
}

// Seasons returns per-label stats ordered by target date, with each
// season's low compared against the previous one.
func (m *Manager) Seasons() []SeasonStats {
	seasons := make([]SeasonStats, 0, len(m.LabelEntries))
	for label, entries := range m.LabelEntries {
		stats := SeasonStats{
			Label:      label,
			TargetDate: entries[0].TargetDate,
			LowWeight:  entries[0].Weight,
			LowDate:    entries[0].Date,
		}
		for _, entry := range entries {
			if entry.Weight < stats.LowWeight {
				stats.LowWeight = entry.Weight
				stats.LowDate = entry.Date
			}
		}
		stats.FinalWeight = entries[len(entries)-1].Weight
		seasons = append(seasons, stats)
	}

	sort.Slice(seasons, func(i, j int) bool {
		return seasons[i].TargetDate.Before(seasons[j].TargetDate)
	})

	for i := 1; i < len(seasons); i++ {
		delta := seasons[i].LowWeight - seasons[i-1].LowWeight
		seasons[i].DeltaVsPrev = &delta
	}

	return seasons
}
