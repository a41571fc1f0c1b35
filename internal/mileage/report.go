package mileage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/example/field-dispatch/internal/auditlog"
	"github.com/example/field-dispatch/internal/eta"
	"github.com/example/field-dispatch/internal/geo"
	"github.com/example/field-dispatch/internal/models"
	"github.com/example/field-dispatch/internal/observability"
	"github.com/example/field-dispatch/internal/storage"
)

// SortKey selects the report ordering.
type SortKey string

const (
	SortByDate     SortKey = "date"     // latest acceptance, most recent first
	SortByDistance SortKey = "distance" // farthest travel first
	SortByCustomer SortKey = "customer" // customer name A-Z
	SortByStatus   SortKey = "status"   // status string A-Z
)

// Filter narrows the report. An empty or "all" status keeps everything.
type Filter struct {
	Status string
}

// Summary is the headline counts shown alongside the report.
type Summary struct {
	Total          int `json:"total"`
	CompletedCount int `json:"completed_count"`
	ActiveCount    int `json:"active_count"`
}

// Engine joins jobs with their acceptance history and computes travel
// distance. Pure read side: it never mutates anything.
type Engine struct {
	Requests storage.RequestStore
	Logs     auditlog.Log

	// optional routing estimate for the latest acceptance; the report
	// works fine without it
	ETAClient       eta.Client
	ETACache        *eta.Cache
	DefaultSpeedMps float64
}

// BuildReport assembles, filters, searches, and sorts the mileage view.
// Date and distance comparisons use each job's latest acceptance entry.
func (e *Engine) BuildReport(ctx context.Context, filter Filter, search string, sortBy SortKey) ([]models.MileageEntry, Summary, error) {
	jobs, err := e.Requests.List(ctx)
	if err != nil {
		return nil, Summary{}, err
	}
	logsByJob, err := e.Logs.ListAll(ctx)
	if err != nil {
		return nil, Summary{}, err
	}

	entries := make([]models.MileageEntry, 0, len(jobs))
	for _, job := range jobs {
		if !matchesStatus(job, filter.Status) || !matchesSearch(job, search) {
			continue
		}
		entry := models.MileageEntry{
			RequestID:       job.ID,
			RequestTitle:    job.Title,
			CustomerName:    job.CustomerName,
			ServiceType:     job.ServiceType,
			RequestLocation: job.Location,
			Status:          job.Status,
			CreatedAt:       job.CreatedAt,
			AcceptanceLogs:  logsByJob[job.ID],
		}
		if entry.AcceptanceLogs == nil {
			entry.AcceptanceLogs = []models.AcceptanceLog{}
		}
		if latest := entry.Latest(); latest != nil {
			entry.DistanceKm = geo.DistanceKm(job.Location, latest.Coordinates)
			entry.DistanceMi = geo.ToMiles(entry.DistanceKm)
			entry.EtaSeconds = e.estimate(latest.Coordinates, job.Location)
		}
		entries = append(entries, entry)
	}

	sortEntries(entries, sortBy)
	observability.ReportsTotal.Inc()
	return entries, summarize(entries), nil
}

func matchesStatus(job *models.ServiceRequest, status string) bool {
	if status == "" || status == "all" {
		return true
	}
	return string(job.Status) == status
}

// matchesSearch checks title and customer name; either hit keeps the job.
func matchesSearch(job *models.ServiceRequest, search string) bool {
	if search == "" {
		return true
	}
	q := strings.ToLower(search)
	return strings.Contains(strings.ToLower(job.Title), q) ||
		strings.Contains(strings.ToLower(job.CustomerName), q)
}

func sortEntries(entries []models.MileageEntry, sortBy SortKey) {
	switch sortBy {
	case SortByDistance:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].DistanceKm > entries[j].DistanceKm
		})
	case SortByCustomer:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CustomerName < entries[j].CustomerName
		})
	case SortByStatus:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Status < entries[j].Status
		})
	default: // date
		sort.SliceStable(entries, func(i, j int) bool {
			return latestTime(&entries[i]).After(latestTime(&entries[j]))
		})
	}
}

func latestTime(e *models.MileageEntry) time.Time {
	if latest := e.Latest(); latest != nil {
		return latest.AcceptedAt
	}
	return time.Time{}
}

func summarize(entries []models.MileageEntry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case models.StatusCompleted:
			s.CompletedCount++
		case models.StatusPending, models.StatusScheduled:
			s.ActiveCount++
		}
	}
	return s
}

func (e *Engine) estimate(from models.Coordinates, to models.Location) float64 {
	if e.ETAClient == nil {
		return 0
	}
	dest := models.Coordinates{Latitude: to.Latitude, Longitude: to.Longitude}
	if e.ETACache != nil {
		if v, ok := e.ETACache.Get(from, dest); ok {
			return v
		}
	}
	v, err := e.ETAClient.EstimateSeconds(from, dest)
	if err != nil {
		// routing engine down; a straight-line estimate beats nothing
		return eta.EstimateSeconds(from, dest, e.DefaultSpeedMps)
	}
	if e.ETACache != nil {
		e.ETACache.Set(from, dest, v)
	}
	return v
}
