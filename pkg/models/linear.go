// Package models holds the regression model behind view-count estimates.
package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned when a design matrix cannot support a fit:
// too few rows, mismatched shapes, non-finite values, or no variation at all.
var ErrInsufficientData = errors.New("insufficient data")

// machineEpsilon is the float64 unit round-off used for the rank cutoff.
const machineEpsilon = 2.220446049250313e-16

// Linear is an ordinary least squares model: y = Intercept + Σ Weights[j]·x[j].
//
// A Linear is immutable once returned by FitLinear and may be shared between
// goroutines without synchronization.
type Linear struct {
	Intercept float64
	Weights   []float64

	// Rank is the numerical rank of the centered design matrix. A rank below
	// len(Weights) means some columns were constant or collinear; those
	// directions get the minimum-norm solution.
	Rank int

	// Samples is the number of rows the model was fitted on.
	Samples int

	// R2 is the coefficient of determination on the training rows.
	R2 float64
}

// MinSamples returns the smallest row count FitLinear accepts for p
// features: one per weight plus the intercept.
func MinSamples(p int) int {
	return p + 1
}

// FitLinear fits an intercept and one weight per column of x against y.
//
// Columns and target are centered first and the weights are the
// minimum-norm least squares solution obtained from a thin SVD, so constant
// or collinear columns receive weight zero rather than failing the fit.
// The intercept is mean(y) - mean(x)·w.
func FitLinear(x [][]float64, y []float64) (*Linear, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInsufficientData)
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows but %d targets", ErrInsufficientData, n, len(y))
	}
	p := len(x[0])
	if p == 0 {
		return nil, fmt.Errorf("%w: no feature columns", ErrInsufficientData)
	}
	if n < MinSamples(p) {
		return nil, fmt.Errorf("%w: %d rows, need at least %d", ErrInsufficientData, n, MinSamples(p))
	}

	xMean := make([]float64, p)
	yMean := 0.0
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInsufficientData, i, len(row), p)
		}
		for j, v := range row {
			if !isFinite(v) {
				return nil, fmt.Errorf("%w: row %d column %d is not finite", ErrInsufficientData, i, j)
			}
			xMean[j] += v
		}
		if !isFinite(y[i]) {
			return nil, fmt.Errorf("%w: target %d is not finite", ErrInsufficientData, i)
		}
		yMean += y[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewDense(n, 1, nil)
	for i, row := range x {
		for j, v := range row {
			xc.Set(i, j, v-xMean[j])
		}
		yc.Set(i, 0, y[i]-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: singular value decomposition did not converge", ErrInsufficientData)
	}

	rank := svd.Rank(machineEpsilon * float64(max(n, p)))
	if rank == 0 {
		return nil, fmt.Errorf("%w: all rows are identical", ErrInsufficientData)
	}

	var w mat.Dense
	svd.SolveTo(&w, yc, rank)

	weights := make([]float64, p)
	intercept := yMean
	for j := range weights {
		weights[j] = w.At(j, 0)
		intercept -= xMean[j] * weights[j]
	}

	m := &Linear{
		Intercept: intercept,
		Weights:   weights,
		Rank:      rank,
		Samples:   n,
	}
	m.R2 = m.score(x, y, yMean)

	return m, nil
}

// Predict returns the raw linear combination for one feature row.
// The result is unconstrained and may be negative.
func (m *Linear) Predict(x []float64) float64 {
	out := m.Intercept
	for j, w := range m.Weights {
		if j < len(x) {
			out += w * x[j]
		}
	}
	return out
}

// score computes R² on the given rows. A constant target scores 1 when the
// fit is exact and 0 otherwise.
func (m *Linear) score(x [][]float64, y []float64, yMean float64) float64 {
	var ssRes, ssTot float64
	for i, row := range x {
		r := y[i] - m.Predict(row)
		ssRes += r * r
		d := y[i] - yMean
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
