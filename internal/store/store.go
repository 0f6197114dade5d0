// Package store defines the repository contract the engine computes
// against. Every method is filtered by disease, so one disease's pipeline
// run can never create, read, or mutate another disease's documents. All
// writes are idempotent upserts keyed by deterministic document IDs; any
// key-value or document store can satisfy the contract.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/epiwatch/outbreak-engine/internal/domain"
)

// ErrUnavailable marks a persistence failure (store down, I/O error). It is
// fatal for the current pipeline stage; the caller may retry the whole
// operation because writes are idempotent.
var ErrUnavailable = errors.New("store unavailable")

// CaseReader queries case history. The ingestion service owns writes to the
// case collection; the engine only reads it.
type CaseReader interface {
	// ListRegions returns the regions that have case data for the disease,
	// ordered by region ID.
	ListRegions(ctx context.Context, disease string) ([]domain.Region, error)

	// CaseHistory returns a region's daily case records in [from, to],
	// ordered by date ascending.
	CaseHistory(ctx context.Context, regionID string, from, to time.Time, disease string) ([]domain.CaseRecord, error)

	// CaseSeries returns the most recent limit records of the given
	// granularity for a region, ordered by date ascending.
	CaseSeries(ctx context.Context, regionID, disease string, g domain.Granularity, limit int) ([]domain.CaseRecord, error)

	// LatestCaseDate returns the most recent date with case data for the
	// disease. Used to resolve a zero effective date.
	LatestCaseDate(ctx context.Context, disease string) (time.Time, error)
}

// CaseWriter seeds regions and case records. Implemented by the stores for
// the ingestion service and the seed command; the engine never writes cases.
type CaseWriter interface {
	PutRegions(ctx context.Context, regions []domain.Region) error
	PutCases(ctx context.Context, records []domain.CaseRecord) error
}

// RiskStore persists risk scores.
type RiskStore interface {
	PutRiskScores(ctx context.Context, scores []domain.RiskScore) error
	LatestRiskScores(ctx context.Context, date time.Time, disease string) ([]domain.RiskScore, error)
	DeleteRiskScores(ctx context.Context, disease string) (int, error)
}

// AlertStore persists alerts.
type AlertStore interface {
	PutAlerts(ctx context.Context, alerts []domain.Alert) error
	ListAlerts(ctx context.Context, date time.Time, disease string) ([]domain.Alert, error)
	DeleteAlerts(ctx context.Context, disease string) (int, error)
}

// ForecastStore persists forecast records.
type ForecastStore interface {
	PutForecasts(ctx context.Context, records []domain.ForecastRecord) error
	ListForecasts(ctx context.Context, disease, modelVersion string) ([]domain.ForecastRecord, error)
	DeleteForecasts(ctx context.Context, disease string) (int, error)
}

// Counts holds per-collection document totals for one disease.
type Counts struct {
	RiskScores int `json:"risk_scores"`
	Alerts     int `json:"alerts"`
	Forecasts  int `json:"forecasts"`
}

// EffectiveDate resolves the date an operation runs against: a non-zero
// date is truncated to its UTC day, a zero date resolves to the latest date
// with case data for the disease.
func EffectiveDate(ctx context.Context, r CaseReader, date time.Time, disease string) (time.Time, error) {
	if !date.IsZero() {
		return date.UTC().Truncate(24 * time.Hour), nil
	}
	latest, err := r.LatestCaseDate(ctx, disease)
	if err != nil {
		return time.Time{}, err
	}
	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("%w: no case data for disease %q", domain.ErrValidation, disease)
	}
	return latest, nil
}

// Store is the full repository contract the pipeline runs against.
type Store interface {
	CaseReader
	RiskStore
	AlertStore
	ForecastStore

	// Counts reports document totals for the disease across the three
	// engine-owned collections.
	Counts(ctx context.Context, disease string) (Counts, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
