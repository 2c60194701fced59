package admin

import (
	"sort"
	"strings"

	"github.com/BearBump/GTLTrack/internal/models"
)

// StatusAll disables the status filter.
const StatusAll = "all"

type Filter struct {
	Search string `json:"search"`
	Status string `json:"status"`
}

func (f Filter) match(rec models.ShipmentRecord) bool {
	if q := strings.ToLower(f.Search); q != "" {
		if !strings.Contains(strings.ToLower(rec.LR), q) && !strings.Contains(strings.ToLower(rec.Route), q) {
			return false
		}
	}
	if f.Status != "" && f.Status != StatusAll && rec.Status != f.Status {
		return false
	}
	return true
}

// Sorted flattens the record set, newest lr first.
func Sorted(records map[string]models.ShipmentRecord) []models.ShipmentRecord {
	out := make([]models.ShipmentRecord, 0, len(records))
	for lr, rec := range records {
		if rec.LR == "" {
			rec.LR = lr
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LR > out[j].LR })
	return out
}

// Project returns the records passing f, preserving input order. It never mutates records.
func Project(records []models.ShipmentRecord, f Filter) []models.ShipmentRecord {
	out := make([]models.ShipmentRecord, 0, len(records))
	for _, rec := range records {
		if f.match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// CountByStatus gives one bucket per distinct status in order of first appearance.
// Records without a status land in the Unknown bucket.
func CountByStatus(records []models.ShipmentRecord) []StatusCount {
	idx := make(map[string]int)
	var out []StatusCount
	for _, rec := range records {
		st := rec.Status
		if st == "" {
			st = models.ShipmentStatusUnknown
		}
		i, ok := idx[st]
		if !ok {
			i = len(out)
			idx[st] = i
			out = append(out, StatusCount{Status: st})
		}
		out[i].Count++
	}
	return out
}

// Stats are the dashboard cards.
type Stats struct {
	Total     int `json:"total"`
	Delivered int `json:"delivered"`
	InTransit int `json:"inTransit"`
	Pending   int `json:"pending"`
}

func ComputeStats(records []models.ShipmentRecord) Stats {
	st := Stats{Total: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case models.ShipmentStatusDelivered:
			st.Delivered++
		case models.ShipmentStatusInTransit:
			st.InTransit++
		case models.ShipmentStatusPending:
			st.Pending++
		}
	}
	return st
}
