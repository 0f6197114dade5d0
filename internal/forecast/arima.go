package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/epiwatch/outbreak-engine/internal/domain"
)

// ARIMA is the statistical time-series strategy: an auto-order ARMA fit on
// the (optionally seasonally) differenced series, estimated by the
// Hannan-Rissanen two-stage least-squares procedure with AIC order
// selection. Seasonal differencing at the granularity's period is applied
// when the window holds at least two full cycles, and the fit is then
// labeled sarima_v1 instead of arima_v1.
//
// The fit windows are small (5/24/52 points by granularity), so this is a
// deliberately lightweight estimator rather than full maximum likelihood;
// any series it cannot fit is reported as an error and the engine falls
// back to the naive strategy for that region.
type ARIMA struct {
	// MaxP and MaxQ bound the non-seasonal AR and MA order search.
	MaxP, MaxQ int
	// MaxSeasonalP and MaxSeasonalQ bound the seasonal order search.
	MaxSeasonalP, MaxSeasonalQ int
}

// NewARIMA returns the strategy with the standard order bounds.
func NewARIMA() *ARIMA {
	return &ARIMA{MaxP: 3, MaxQ: 3, MaxSeasonalP: 2, MaxSeasonalQ: 2}
}

func (a *ARIMA) Name() string { return "arima" }

// minFitPoints is the shortest series the estimator will attempt.
const minFitPoints = 6

// varianceEps is the variance below which a series counts as flat.
const varianceEps = 1e-8

// Forecast fits the model over the granularity's window and predicts
// horizon steps ahead. Predictions and interval bounds are clamped to zero.
func (a *ARIMA) Forecast(history []float64, horizon int, g domain.Granularity) (Prediction, error) {
	if horizon < 1 {
		return Prediction{}, fmt.Errorf("%w: horizon must be positive", domain.ErrValidation)
	}

	y := history
	if window := g.FitWindow(); len(y) > window {
		y = y[len(y)-window:]
	}
	if len(y) < minFitPoints {
		return Prediction{}, fmt.Errorf("%w: %d points, need %d", ErrInsufficientHistory, len(y), minFitPoints)
	}
	if stat.Variance(y, nil) < varianceEps {
		return Prediction{}, ErrNoVariance
	}

	s := g.SeasonalPeriod()
	seasonal := s > 1 && len(y) >= 2*s

	// Seasonal differencing removes the periodic component; regular
	// differencing is applied only when it reduces variance.
	u := y
	if seasonal {
		u = seasonalDiff(y, s)
	}
	w := u
	d := 0
	if len(u) >= 4 && stat.Variance(diff(u), nil) < stat.Variance(u, nil) {
		w = diff(u)
		d = 1
	}
	if len(w) < 3 || stat.Variance(w, nil) < varianceEps {
		return Prediction{}, ErrNoVariance
	}

	f, err := a.fit(w, s, seasonal)
	if err != nil {
		return Prediction{}, err
	}

	wPred := f.predict(w, horizon, s)

	// Invert regular differencing.
	uPred := wPred
	if d == 1 {
		uPred = make([]float64, horizon)
		level := u[len(u)-1]
		for i, dv := range wPred {
			level += dv
			uPred[i] = level
		}
	}

	// Invert seasonal differencing, reading predicted values once the
	// lag reaches past the observed series.
	yPred := uPred
	if seasonal {
		yExt := append(make([]float64, 0, len(y)+horizon), y...)
		yPred = make([]float64, horizon)
		for i := range uPred {
			yPred[i] = uPred[i] + yExt[len(y)+i-s]
			yExt = append(yExt, yPred[i])
		}
	}

	points := make([]Point, horizon)
	for i, mean := range yPred {
		if !isFinite(mean) {
			return Prediction{}, fmt.Errorf("%w: non-finite prediction", ErrFitFailed)
		}
		// Approximate interval: residual sigma widened by the square root
		// of the step count.
		half := 1.96 * f.sigma * math.Sqrt(float64(i+1))
		points[i] = Point{
			Mean:  math.Max(0, mean),
			Lower: math.Max(0, mean-half),
			Upper: math.Max(0, mean+half),
		}
	}

	version := ARIMAVersion
	if seasonal {
		version = SeasonalVersion
	}
	return Prediction{Points: points, ModelVersion: version}, nil
}

// fitResult holds the selected model's coefficients and residuals over the
// differenced series.
type fitResult struct {
	intercept float64
	ar        []float64 // lags 1..p
	ma        []float64 // residual lags 1..q
	sar       []float64 // seasonal lags s..P*s
	sma       []float64 // seasonal residual lags s..Q*s
	sigma     float64
	resid     []float64
}

// fit runs the Hannan-Rissanen procedure: a long autoregression supplies
// residual estimates, then every bounded (p,q,P,Q) candidate is refit by
// least squares on lagged values and lagged residuals, keeping the lowest
// AIC. Candidates without enough effective observations are skipped, which
// naturally disables seasonal terms on short windows.
func (a *ARIMA) fit(w []float64, s int, seasonal bool) (*fitResult, error) {
	n := len(w)

	m := n / 3
	if m > 6 {
		m = 6
	}
	for m >= 1 && n-m < m+2 {
		m--
	}
	if m < 1 {
		return nil, fmt.Errorf("%w: series too short for long AR stage", ErrInsufficientHistory)
	}

	longX, longY := lagMatrix(w, m)
	longBeta, _, err := ols(longX, longY)
	if err != nil {
		return nil, fmt.Errorf("%w: long AR stage: %v", ErrFitFailed, err)
	}

	e := make([]float64, n)
	for t := m; t < n; t++ {
		pred := longBeta[0]
		for j := 1; j <= m; j++ {
			pred += longBeta[j] * w[t-j]
		}
		e[t] = w[t] - pred
	}

	maxPs, maxQs := 0, 0
	if seasonal {
		maxPs, maxQs = a.MaxSeasonalP, a.MaxSeasonalQ
	}

	var best *fitResult
	bestAIC := math.Inf(1)

	for p := 0; p <= a.MaxP; p++ {
		for q := 0; q <= a.MaxQ; q++ {
			for sp := 0; sp <= maxPs; sp++ {
				for sq := 0; sq <= maxQs; sq++ {
					k := p + q + sp + sq
					if k == 0 {
						continue
					}
					t0 := maxInt(p, m+q, sp*s, m+sq*s)
					rows := n - t0
					if rows < k+2 {
						continue
					}

					X := mat.NewDense(rows, k+1, nil)
					yv := make([]float64, rows)
					for i := 0; i < rows; i++ {
						t := t0 + i
						col := 0
						X.Set(i, col, 1)
						col++
						for j := 1; j <= p; j++ {
							X.Set(i, col, w[t-j])
							col++
						}
						for j := 1; j <= q; j++ {
							X.Set(i, col, e[t-j])
							col++
						}
						for j := 1; j <= sp; j++ {
							X.Set(i, col, w[t-j*s])
							col++
						}
						for j := 1; j <= sq; j++ {
							X.Set(i, col, e[t-j*s])
							col++
						}
						yv[i] = w[t]
					}

					beta, rss, err := ols(X, yv)
					if err != nil || !allFinite(beta) {
						continue
					}

					aic := float64(rows)*math.Log(rss/float64(rows)+1e-12) + 2*float64(k+1)
					if aic >= bestAIC {
						continue
					}
					bestAIC = aic
					best = &fitResult{
						intercept: beta[0],
						ar:        beta[1 : 1+p],
						ma:        beta[1+p : 1+p+q],
						sar:       beta[1+p+q : 1+p+q+sp],
						sma:       beta[1+p+q+sp : 1+k],
						sigma:     math.Sqrt(rss / float64(rows)),
						resid:     e,
					}
				}
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no feasible order", ErrFitFailed)
	}
	return best, nil
}

// predict recursively extends the differenced series, treating future
// residuals as zero.
func (f *fitResult) predict(w []float64, horizon, s int) []float64 {
	n := len(w)
	wExt := append(make([]float64, 0, n+horizon), w...)
	eExt := append(make([]float64, 0, n+horizon), f.resid...)

	preds := make([]float64, 0, horizon)
	for i := 0; i < horizon; i++ {
		t := n + i
		v := f.intercept
		for j, c := range f.ar {
			v += c * at(wExt, t-j-1)
		}
		for j, c := range f.ma {
			v += c * at(eExt, t-j-1)
		}
		for j, c := range f.sar {
			v += c * at(wExt, t-(j+1)*s)
		}
		for j, c := range f.sma {
			v += c * at(eExt, t-(j+1)*s)
		}
		wExt = append(wExt, v)
		eExt = append(eExt, 0)
		preds = append(preds, v)
	}
	return preds
}

// lagMatrix builds the OLS design for an AR(m) with intercept.
func lagMatrix(w []float64, m int) (*mat.Dense, []float64) {
	n := len(w)
	rows := n - m
	X := mat.NewDense(rows, m+1, nil)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		t := m + i
		X.Set(i, 0, 1)
		for j := 1; j <= m; j++ {
			X.Set(i, j, w[t-j])
		}
		y[i] = w[t]
	}
	return X, y
}

// ols solves the least-squares problem via QR and returns the coefficients
// and residual sum of squares.
func ols(X *mat.Dense, y []float64) ([]float64, float64, error) {
	rows, cols := X.Dims()

	var qr mat.QR
	qr.Factorize(X)

	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, mat.NewDense(rows, 1, y)); err != nil {
		return nil, 0, err
	}

	beta := make([]float64, cols)
	for j := range beta {
		beta[j] = sol.At(j, 0)
	}

	var rss float64
	for i := 0; i < rows; i++ {
		pred := 0.0
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * beta[j]
		}
		r := y[i] - pred
		rss += r * r
	}
	return beta, rss, nil
}

func diff(v []float64) []float64 {
	out := make([]float64, len(v)-1)
	for i := 1; i < len(v); i++ {
		out[i-1] = v[i] - v[i-1]
	}
	return out
}

func seasonalDiff(v []float64, s int) []float64 {
	out := make([]float64, len(v)-s)
	for i := s; i < len(v); i++ {
		out[i-s] = v[i] - v[i-s]
	}
	return out
}

func at(v []float64, i int) float64 {
	if i < 0 || i >= len(v) {
		return 0
	}
	return v[i]
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}
	return true
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
