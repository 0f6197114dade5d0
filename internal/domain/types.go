package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RiskLevel is the four-step severity classification of a risk score.
type RiskLevel string

const (
	LevelLow      RiskLevel = "LOW"
	LevelMedium   RiskLevel = "MEDIUM"
	LevelHigh     RiskLevel = "HIGH"
	LevelCritical RiskLevel = "CRITICAL"
)

// LevelForScore maps a clamped [0,1] risk score to its level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= 0.85:
		return LevelCritical
	case score >= 0.70:
		return LevelHigh
	case score >= 0.40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Region identifies a geographic reporting unit.
type Region struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// CaseRecord is one observation of case counts for a region, date, and
// disease. Granularity tags the temporal resolution of the record; daily
// records drive risk scoring while weekly/monthly/yearly series drive
// forecasting. Ingestion owns writes to this collection.
type CaseRecord struct {
	RegionID    string      `json:"region_id"`
	Date        time.Time   `json:"date"`
	Disease     string      `json:"disease"`
	Confirmed   int         `json:"confirmed"`
	Deaths      int         `json:"deaths"`
	Recovered   int         `json:"recovered"`
	Granularity Granularity `json:"granularity"`
}

// RiskMetrics holds the raw (unclipped) component inputs so a reader can see
// what drove the score.
type RiskMetrics struct {
	GrowthRate     float64 `json:"growth_rate"`
	VolatilityNorm float64 `json:"volatility_norm"`
	DeathRatio     float64 `json:"death_ratio"`
}

// ClimateInfo records how the seasonal adjustment changed the base score.
type ClimateInfo struct {
	BaseRisk     float64 `json:"base_risk"`
	Multiplier   float64 `json:"multiplier"`
	AdjustedRisk float64 `json:"adjusted_risk"`
	Season       string  `json:"season"`
	Explanation  string  `json:"explanation"`
}

// RiskScore is the scored outbreak risk for one (region, date, disease).
// Re-running the pipeline overwrites the document for the same key; there is
// no historical versioning.
type RiskScore struct {
	ID         string      `json:"id"`
	RegionID   string      `json:"region_id"`
	Date       time.Time   `json:"date"`
	Disease    string      `json:"disease"`
	Score      float64     `json:"score"`
	Level      RiskLevel   `json:"level"`
	Drivers    []string    `json:"drivers"`
	Metrics    RiskMetrics `json:"metrics"`
	Climate    ClimateInfo `json:"climate_info"`
	ComputedAt time.Time   `json:"computed_at"`
}

// Alert is raised when a region's risk score crosses the high threshold.
// Keyed by (region, date, disease, reason) so a re-run upserts rather than
// duplicates.
type Alert struct {
	ID        string    `json:"id"`
	RegionID  string    `json:"region_id"`
	Date      time.Time `json:"date"`
	Disease   string    `json:"disease"`
	Reason    string    `json:"reason"`
	Severity  RiskLevel `json:"severity"`
	Drivers   []string  `json:"drivers"`
	RiskScore float64   `json:"risk_score"`
	CreatedAt time.Time `json:"created_at"`
}

// ForecastRecord is one predicted future point for a region and disease.
// Date is the target date of the prediction (the effective date stepped
// forward by the granularity). ModelVersion records which strategy produced
// it so downstream evaluation can compare strategies.
type ForecastRecord struct {
	ID                string      `json:"id"`
	RegionID          string      `json:"region_id"`
	Date              time.Time   `json:"date"`
	Disease           string      `json:"disease"`
	ModelVersion      string      `json:"model_version"`
	PredMean          float64     `json:"pred_mean"`
	PredLower         float64     `json:"pred_lower"`
	PredUpper         float64     `json:"pred_upper"`
	SourceGranularity Granularity `json:"source_granularity"`
	GeneratedAt       time.Time   `json:"generated_at"`
}

// DayKey formats a date as its canonical day string used in document IDs.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RiskScoreID produces the deterministic document ID for a risk score.
func RiskScoreID(regionID string, date time.Time, disease string) string {
	return hashID("risk", regionID, DayKey(date), disease)
}

// AlertID produces the deterministic document ID for an alert. The reason
// string is part of the key so distinct reasons for the same region/date
// coexist while re-runs of the same reason collapse into one document.
func AlertID(regionID string, date time.Time, disease, reason string) string {
	return hashID("alert", regionID, DayKey(date), disease, reason)
}

// ForecastID produces the deterministic document ID for a forecast record.
func ForecastID(regionID string, date time.Time, disease, modelVersion string) string {
	return hashID("fc", regionID, DayKey(date), disease, modelVersion)
}

// hashID produces a short deterministic ID from the document's key fields.
// Deterministic IDs make every write an idempotent upsert: reprocessing the
// same inputs lands on the same document.
func hashID(prefix string, parts ...string) string {
	input := ""
	for i, p := range parts {
		if i > 0 {
			input += "|"
		}
		input += p
	}
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(hash[:8]))
}
