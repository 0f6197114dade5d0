// Package domain models the epidemiological early-warning data: daily case
// records, per-region risk scores, threshold alerts, and forecast records.
//
// # Risk Scoring
//
// A region's risk score is computed from a 7-day lookback window of case
// records:
//
//	growth     = clip((cases_today - cases_7d_ago) / cases_7d_ago, 0, 1)
//	volatility = clip(2 * stdev(confirmed) / mean(confirmed), 0, 1)
//	death      = clip(50 * sum(deaths) / sum(confirmed), 0, 1)
//	base       = 0.65*growth + 0.25*volatility + 0.10*death
//
// All divisions are safe: a zero denominator yields a zero component. When
// seasonal boost is enabled the base score is multiplied by the month's
// seasonal factor and capped at 1.0. Scores map to levels:
//
//	>= 0.85 CRITICAL | >= 0.70 HIGH | >= 0.40 MEDIUM | else LOW
//
// # Disease Isolation
//
// Every document carries a disease tag and every read, write, and delete is
// filtered by it. Processing one disease never touches another disease's
// documents. Disease identifiers are normalized (lowercased, underscored)
// and validated against a registry before any query runs.
//
// # Document IDs
//
// Document IDs are deterministic SHA-256 hashes of the document's key fields
// (region, date, disease, and for forecasts the model version and target
// step). Recomputing the pipeline over the same case history produces the
// same IDs, so writes are idempotent upserts rather than appends. See
// [RiskScoreID], [AlertID], [ForecastID].
//
// # Granularity
//
// Forecasting operates on weekly, monthly, or yearly series. Granularity
// determines the naive lookback (12/6/3 points), the statistical fit window
// (52/24/5 points), and the seasonal period (52/12/1).
package domain
