package cycles

import (
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// Spectrum runs a real FFT over the mean-centered series and returns one
// cycle per positive frequency bin, strongest first. A bin k of an n-point
// transform corresponds to a cycle of n/k observations.
func Spectrum(series []float64) (models.Spectrum, error) {
	n := len(series)
	if n < 2 {
		return nil, apperrors.NewInsufficientDataError("spectral analysis", 2, n)
	}

	mean := stat.Mean(series, nil)
	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, centered)

	out := make(models.Spectrum, 0, len(coeffs)-1)
	for k := 1; k < len(coeffs); k++ {
		out = append(out, models.Cycle{
			Length:    float64(n) / float64(k),
			Amplitude: cmplx.Abs(coeffs[k]),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amplitude > out[j].Amplitude
	})
	return out, nil
}
