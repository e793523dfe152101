package telemetry

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// Summary describes the pixel error and pose over a set of samples.
type Summary struct {
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`

	MeanErrorX float64 `json:"mean_error_x"`
	StdErrorX  float64 `json:"std_error_x"`
	MeanErrorY float64 `json:"mean_error_y"`
	StdErrorY  float64 `json:"std_error_y"`
	RMSError   float64 `json:"rms_error"` // Euclidean pixel error
	MaxError   float64 `json:"max_error"`

	MeanAbsEyeYaw  float64 `json:"mean_abs_eye_yaw"`
	MeanAbsEyeTilt float64 `json:"mean_abs_eye_tilt"`

	DoneFraction float64 `json:"done_fraction"` // Share of samples with MovementDone set
}

// Summarize computes a Summary. An empty slice gives a zero Summary.
func Summarize(samples []tracking.Snapshot) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}

	ex := make([]float64, n)
	ey := make([]float64, n)
	sq := make([]float64, n)
	yaw := make([]float64, n)
	tilt := make([]float64, n)
	done := 0
	for i, s := range samples {
		ex[i] = float64(s.ErrorX)
		ey[i] = float64(s.ErrorY)
		sq[i] = ex[i]*ex[i] + ey[i]*ey[i]
		yaw[i] = math.Abs(s.EyeYaw)
		tilt[i] = math.Abs(s.EyeTilt)
		if s.MovementDone {
			done++
		}
	}

	sum := Summary{
		Count:          n,
		Duration:       samples[n-1].Time.Sub(samples[0].Time),
		RMSError:       math.Sqrt(stat.Mean(sq, nil)),
		MaxError:       math.Sqrt(floats.Max(sq)),
		MeanAbsEyeYaw:  stat.Mean(yaw, nil),
		MeanAbsEyeTilt: stat.Mean(tilt, nil),
		DoneFraction:   float64(done) / float64(n),
	}
	if n > 1 {
		sum.MeanErrorX, sum.StdErrorX = stat.MeanStdDev(ex, nil)
		sum.MeanErrorY, sum.StdErrorY = stat.MeanStdDev(ey, nil)
	} else {
		sum.MeanErrorX, sum.MeanErrorY = ex[0], ey[0]
	}
	return sum
}
