// Package memory provides an in-memory Store implementation used by tests,
// demos, and single-process evaluation runs. All maps are guarded by one
// mutex; the engine's writes are idempotent upserts so last-writer-wins on
// the same key is acceptable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/store"
)

type caseKey struct {
	regionID    string
	day         string
	disease     string
	granularity domain.Granularity
}

// Store is an in-memory document store keyed by deterministic IDs.
type Store struct {
	mu        sync.RWMutex
	regions   map[string]map[string]domain.Region // disease -> region ID -> region
	cases     map[caseKey]domain.CaseRecord
	risks     map[string]domain.RiskScore
	alerts    map[string]domain.Alert
	forecasts map[string]domain.ForecastRecord
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		regions:   make(map[string]map[string]domain.Region),
		cases:     make(map[caseKey]domain.CaseRecord),
		risks:     make(map[string]domain.RiskScore),
		alerts:    make(map[string]domain.Alert),
		forecasts: make(map[string]domain.ForecastRecord),
	}
}

var _ store.Store = (*Store)(nil)
var _ store.CaseWriter = (*Store)(nil)

// PutRegions registers regions for every disease they appear with case data
// for. Regions without a disease association are registered lazily by
// PutCases; this method associates them with all diseases already present
// plus the empty partition used by PutCases.
func (s *Store) PutRegions(_ context.Context, regions []domain.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range regions {
		if s.regions[""] == nil {
			s.regions[""] = make(map[string]domain.Region)
		}
		s.regions[""][r.ID] = r
	}
	return nil
}

// PutCases upserts case records and associates their regions with the
// record's disease partition.
func (s *Store) PutCases(_ context.Context, records []domain.CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		key := caseKey{rec.RegionID, domain.DayKey(rec.Date), rec.Disease, rec.Granularity}
		s.cases[key] = rec

		if s.regions[rec.Disease] == nil {
			s.regions[rec.Disease] = make(map[string]domain.Region)
		}
		if base, ok := s.regions[""][rec.RegionID]; ok {
			s.regions[rec.Disease][rec.RegionID] = base
		} else {
			s.regions[rec.Disease][rec.RegionID] = domain.Region{ID: rec.RegionID, Name: rec.RegionID}
		}
	}
	return nil
}

func (s *Store) ListRegions(_ context.Context, disease string) ([]domain.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Region, 0, len(s.regions[disease]))
	for _, r := range s.regions[disease] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CaseHistory(_ context.Context, regionID string, from, to time.Time, disease string) ([]domain.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CaseRecord
	for key, rec := range s.cases {
		if key.regionID != regionID || key.disease != disease {
			continue
		}
		// Risk scoring only looks at daily records; records ingested
		// without a tag are treated as daily.
		if rec.Granularity != "" && rec.Granularity != domain.Daily {
			continue
		}
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) CaseSeries(_ context.Context, regionID, disease string, g domain.Granularity, limit int) ([]domain.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CaseRecord
	for key, rec := range s.cases {
		if key.regionID == regionID && key.disease == disease && key.granularity == g {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) LatestCaseDate(_ context.Context, disease string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	for key, rec := range s.cases {
		if key.disease == disease && rec.Date.After(latest) {
			latest = rec.Date
		}
	}
	return latest, nil
}

func (s *Store) PutRiskScores(_ context.Context, scores []domain.RiskScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range scores {
		s.risks[sc.ID] = sc
	}
	return nil
}

func (s *Store) LatestRiskScores(_ context.Context, date time.Time, disease string) ([]domain.RiskScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := domain.DayKey(date)
	var out []domain.RiskScore
	for _, sc := range s.risks {
		if sc.Disease == disease && domain.DayKey(sc.Date) == day {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out, nil
}

func (s *Store) DeleteRiskScores(_ context.Context, disease string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sc := range s.risks {
		if sc.Disease == disease {
			delete(s.risks, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) PutAlerts(_ context.Context, alerts []domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
	return nil
}

func (s *Store) ListAlerts(_ context.Context, date time.Time, disease string) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := domain.DayKey(date)
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.Disease == disease && domain.DayKey(a.Date) == day {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out, nil
}

func (s *Store) DeleteAlerts(_ context.Context, disease string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, a := range s.alerts {
		if a.Disease == disease {
			delete(s.alerts, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) PutForecasts(_ context.Context, records []domain.ForecastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.forecasts[r.ID] = r
	}
	return nil
}

func (s *Store) ListForecasts(_ context.Context, disease, modelVersion string) ([]domain.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ForecastRecord
	for _, r := range s.forecasts {
		if r.Disease != disease {
			continue
		}
		if modelVersion != "" && r.ModelVersion != modelVersion {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegionID != out[j].RegionID {
			return out[i].RegionID < out[j].RegionID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *Store) DeleteForecasts(_ context.Context, disease string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.forecasts {
		if r.Disease == disease {
			delete(s.forecasts, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Counts(_ context.Context, disease string) (store.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c store.Counts
	for _, sc := range s.risks {
		if sc.Disease == disease {
			c.RiskScores++
		}
	}
	for _, a := range s.alerts {
		if a.Disease == disease {
			c.Alerts++
		}
	}
	for _, r := range s.forecasts {
		if r.Disease == disease {
			c.Forecasts++
		}
	}
	return c, nil
}

func (s *Store) Ping(context.Context) error { return nil }
