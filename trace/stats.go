package trace

import (
	"math"
	"time"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/geo/distance"
	"github.com/montanaflynn/stats"
)

// StepStats summarizes one step.
type StepStats struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration

	// DistanceKm is the great-circle length of the step.
	DistanceKm float64
	// KmStart and KmEnd are the cumulative kilometers at the step bounds.
	KmStart float64
	KmEnd   float64

	SpeedMean   float64
	SpeedMax    float64
	AltitudeMin float64
	AltitudeMax float64
}

func computeStats(points []Point) StepStats {
	first, last := points[0], points[len(points)-1]
	st := StepStats{
		Start:   first.Time(),
		End:     last.Time(),
		KmStart: first.Km,
		KmEnd:   last.Km,
	}
	st.Duration = st.End.Sub(st.Start)

	speeds := []float64{}
	altitudes := []float64{}
	var prev *Point
	for i := range points {
		p := &points[i]
		if !math.IsNaN(p.Speed) && p.Speed >= 0 {
			speeds = append(speeds, p.Speed)
		}
		if !math.IsNaN(p.Altitude) {
			altitudes = append(altitudes, p.Altitude)
		}
		if !p.HasPosition() {
			continue
		}
		if prev != nil {
			st.DistanceKm += distance.Between(prev.Point(), p.Point())
		}
		prev = p
	}
	st.DistanceKm = common.DecimalToFixed(st.DistanceKm, 2)

	statsMustFloat := func(fn func() (float64, error)) float64 {
		out, err := fn()
		if err != nil {
			return math.NaN()
		}
		return out
	}
	speedData := stats.Float64Data(speeds)
	altitudeData := stats.Float64Data(altitudes)
	st.SpeedMean = common.DecimalToFixed(statsMustFloat(speedData.Mean), 2)
	st.SpeedMax = statsMustFloat(speedData.Max)
	st.AltitudeMin = statsMustFloat(altitudeData.Min)
	st.AltitudeMax = statsMustFloat(altitudeData.Max)
	return st
}
