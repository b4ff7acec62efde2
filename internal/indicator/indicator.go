// Package indicator computes the scalar statistics used to describe one
// vibration-acceleration recording, and projects them onto the feature order
// consumed by the selection and classification stages.
package indicator

import (
	"fmt"
	"math"

	"vibration-diag/internal/common"

	"gonum.org/v1/gonum/stat"
)

// Indicators is the fixed-order set of statistics computed from one signal.
type Indicators struct {
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	Variance    float64 `json:"variance"`
	RMS         float64 `json:"rms"`
	Peak        float64 `json:"peak"`
	Energy      float64 `json:"energy"`
	Power       float64 `json:"power"`
	Skewness    float64 `json:"skewness"`
	Kurtosis    float64 `json:"kurtosis"`
	CrestFactor float64 `json:"crest_factor"`
	KFactor     float64 `json:"k_factor"`
}

// FeatureVector is the projection of Indicators onto FeatureNames.
type FeatureVector []float64

// FeatureNames is the column order of every FeatureVector.
var FeatureNames = [...]string{
	"energy",
	"power",
	"peak",
	"mean",
	"rms",
	"kurtosis",
	"crest_factor",
	"k_factor",
}

// FeatureWidth is the number of columns in a FeatureVector.
const FeatureWidth = len(FeatureNames)

// Features projects the indicators onto FeatureNames. No value is recomputed.
func (ind Indicators) Features() FeatureVector {
	return FeatureVector{
		ind.Energy,
		ind.Power,
		ind.Peak,
		ind.Mean,
		ind.RMS,
		ind.Kurtosis,
		ind.CrestFactor,
		ind.KFactor,
	}
}

// Extract computes all indicators over the full sample set of signal.
// It fails with common.ErrEmptyDataset for an empty signal and with
// common.ErrDegenerateSignal when skewness, kurtosis or the crest factor are
// undefined.
func Extract(signal []float64) (Indicators, error) {
	n := len(signal)
	if n == 0 {
		return Indicators{}, fmt.Errorf("extract indicators: %w: signal has no samples", common.ErrEmptyDataset)
	}
	for i, x := range signal {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Indicators{}, fmt.Errorf("extract indicators: %w: sample %d is not finite", common.ErrInvalidArgument, i)
		}
	}

	mean, variance := Moments(signal)
	std := math.Sqrt(variance)

	var energy, peak float64
	for _, x := range signal {
		energy += x * x
		if a := math.Abs(x); a > peak {
			peak = a
		}
	}
	power := energy / float64(n)
	rms := math.Sqrt(power)

	ind := Indicators{
		Mean:     mean,
		StdDev:   std,
		Variance: variance,
		RMS:      rms,
		Peak:     peak,
		Energy:   energy,
		Power:    power,
	}

	if !ind.finite() {
		return Indicators{}, fmt.Errorf("extract indicators: %w: indicator overflow", common.ErrInvalidArgument)
	}
	if std == 0 {
		return ind, fmt.Errorf("extract indicators: %w: standard deviation is zero", common.ErrDegenerateSignal)
	}
	if rms == 0 {
		return ind, fmt.Errorf("extract indicators: %w: rms is zero", common.ErrDegenerateSignal)
	}

	var m3, m4 float64
	for _, x := range signal {
		z := (x - mean) / std
		z2 := z * z
		m3 += z2 * z
		m4 += z2 * z2
	}
	ind.Skewness = m3 / float64(n)
	ind.Kurtosis = m4/float64(n) - 3
	ind.CrestFactor = peak / rms
	ind.KFactor = peak * rms
	if !ind.finite() {
		return Indicators{}, fmt.Errorf("extract indicators: %w: indicator overflow", common.ErrInvalidArgument)
	}

	return ind, nil
}

func (ind Indicators) finite() bool {
	for _, v := range [...]float64{
		ind.Mean, ind.StdDev, ind.Variance, ind.RMS, ind.Peak, ind.Energy,
		ind.Power, ind.Skewness, ind.Kurtosis, ind.CrestFactor, ind.KFactor,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Moments returns the mean and population variance of x. A constant signal
// reports exactly its value as mean and exactly zero variance, and an empty
// slice reports zero for both.
func Moments(x []float64) (mean, variance float64) {
	if len(x) == 0 {
		return 0, 0
	}
	if isConstant(x) {
		return x[0], 0
	}
	return stat.PopMeanVariance(x, nil)
}

func isConstant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
