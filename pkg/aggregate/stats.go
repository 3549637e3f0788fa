package aggregate

import (
	mstats "github.com/montanaflynn/stats"
)

// StatsResult is the finished view produced by Stats: summary statistics
// over every value that fell into the window.
type StatsResult struct {
	Count  int64
	Mean   float64
	StdDev float64
	P50    float64
	P95    float64
}

// statsAcc buffers raw values. There is no known constant-time inverse for
// variance/percentile under arbitrary combine/deduct cycles, so Stats
// deliberately leaves Deduct nil and forces the sliding combiner's
// recompute path.
type statsAcc struct {
	values []float64
}

// Stats returns a non-deduct-capable aggregator computing running summary
// statistics (mean, standard deviation, p50, p95) over a numeric field
// extracted from each event.
func Stats[T any](extract func(T) float64) Aggregator[T, statsAcc, StatsResult] {
	return Aggregator[T, statsAcc, StatsResult]{
		Create: func() statsAcc { return statsAcc{} },
		Accumulate: func(acc statsAcc, event T) statsAcc {
			acc.values = append(acc.values, extract(event))
			return acc
		},
		Combine: func(a, b statsAcc) statsAcc {
			a.values = append(a.values, b.values...)
			return a
		},
		Finish: func(acc statsAcc) StatsResult {
			if len(acc.values) == 0 {
				return StatsResult{}
			}
			data := mstats.Float64Data(acc.values)
			mean, _ := data.Mean()
			stddev, _ := data.StandardDeviation()
			p50, _ := data.Percentile(50)
			p95, _ := data.Percentile(95)
			return StatsResult{
				Count:  int64(len(acc.values)),
				Mean:   mean,
				StdDev: stddev,
				P50:    p50,
				P95:    p95,
			}
		},
	}
}
