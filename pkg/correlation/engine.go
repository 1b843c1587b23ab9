// Package correlation computes pairwise correlation or covariance between
// many equally sized data series.
package correlation

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"

	"wbcore/internal/models"
)

// fisherZClamp bounds |r| before atanh so that perfectly correlated series
// yield a finite value
const fisherZClamp = 0.999999

// varianceTolerance scales the rounding error of a removed mean. A series
// whose deviations stay below it is treated as constant.
const varianceTolerance = 4 * 0x1p-52

// Series is a possibly strided view of caller memory: element n is
// Data[n*Stride]. New copies the elements it needs, so the memory may change
// once New returns.
type Series struct {
	Data   []float64
	Count  int
	Stride int
}

// dataSet holds a contiguous copy of a series with its mean already removed
// (when means are removed) and the norm of that copy
type dataSet struct {
	vec blas64.Vector

	// sqrtSumSquared is sqrt(Σ(x-mean)²), zero for a constant series
	sqrtSumSquared float64
}

func newDataSet(s Series, removeMean bool) dataSet {
	centered := make([]float64, s.Count)
	for n := range centered {
		centered[n] = s.Data[n*s.Stride]
	}
	d := dataSet{vec: blas64.Vector{N: s.Count, Inc: 1, Data: centered}}
	if !removeMean {
		d.sqrtSumSquared = blas64.Nrm2(d.vec)
		return d
	}

	constant := true
	sum := 0.0
	for _, v := range centered {
		sum += v
		if v != centered[0] {
			constant = false
		}
	}
	mean := sum / float64(s.Count)
	for n := range centered {
		centered[n] -= mean
	}
	ss := blas64.Nrm2(d.vec)
	// a mean that does not round-trip leaves rounding noise behind
	if constant || ss <= varianceTolerance*math.Abs(mean)*math.Sqrt(float64(s.Count)) {
		for n := range centered {
			centered[n] = 0
		}
		ss = 0
	}
	d.sqrtSumSquared = ss
	return d
}

// Engine computes rows of the pairwise statistic matrix
type Engine struct {
	settings Settings
	count    int
	workers  int
	dataSets []dataSet
}

// New validates the series and precomputes their statistics. Every series
// must have the same element count and stride.
func New(settings Settings, series []Series) (*Engine, error) {
	if len(series) == 0 {
		return nil, models.NoInputf("no data series supplied")
	}
	count, stride := series[0].Count, series[0].Stride
	if count < 1 {
		return nil, models.Preconditionf("data series must have at least one element")
	}
	if stride < 1 {
		return nil, models.Preconditionf("data series stride must be positive, got %d", stride)
	}

	e := &Engine{settings: settings, count: count, workers: runtime.NumCPU(), dataSets: make([]dataSet, len(series))}
	removeMean := !settings.useNoDemean()
	for i, s := range series {
		if s.Count != count || s.Stride != stride {
			return nil, models.Preconditionf("series %d has count %d stride %d, series 0 has count %d stride %d",
				i, s.Count, s.Stride, count, stride)
		}
		if len(s.Data) < (count-1)*stride+1 {
			return nil, models.Preconditionf("series %d holds %d values, too few for %d elements at stride %d",
				i, len(s.Data), count, stride)
		}
		e.dataSets[i] = newDataSet(s, removeMean)
	}
	return e, nil
}

// SeriesFromRows views each row of a row-major matrix as a series
func SeriesFromRows(data []float64, rows, cols, stride int) []Series {
	out := make([]Series, rows)
	for r := range out {
		out[r] = Series{Data: data[r*stride : r*stride+cols], Count: cols, Stride: 1}
	}
	return out
}

// SeriesFromColumns views each column of a row-major matrix as a series
func SeriesFromColumns(data []float64, rows, cols, stride int) []Series {
	out := make([]Series, cols)
	for c := range out {
		out[c] = Series{Data: data[c:], Count: rows, Stride: stride}
	}
	return out
}

// Settings returns the engine's settings
func (e *Engine) Settings() Settings { return e.settings }

// SetWorkers bounds how many rows ComputeAverageForDataSetIndices computes
// at once; zero or less uses every CPU
func (e *Engine) SetWorkers(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	e.workers = n
}

// NumberOfDataSets returns how many series the engine holds
func (e *Engine) NumberOfDataSets() int { return len(e.dataSets) }

// pair computes the statistic between two data sets. Correlation with a
// zero-variance series is defined as 0.
func (e *Engine) pair(a, b *dataSet) float64 {
	n := float64(e.count)
	numerator := blas64.Dot(a.vec, b.vec)

	if e.settings.Mode() == Covariance {
		return numerator / n
	}
	if a.sqrtSumSquared == 0 || b.sqrtSumSquared == 0 {
		return 0
	}
	r := numerator / (a.sqrtSumSquared * b.sqrtSumSquared)
	r = math.Max(-1, math.Min(1, r))
	if e.settings.useFisherZ() {
		r = math.Atanh(math.Max(-fisherZClamp, math.Min(fisherZClamp, r)))
	}
	return r
}

// Pair returns the statistic between data sets i and j
func (e *Engine) Pair(i, j int) (float64, error) {
	if err := e.checkIndex(i); err != nil {
		return 0, err
	}
	if err := e.checkIndex(j); err != nil {
		return 0, err
	}
	return e.pair(&e.dataSets[i], &e.dataSets[j]), nil
}

func (e *Engine) checkIndex(i int) error {
	if i < 0 || i >= len(e.dataSets) {
		return models.IndexRangef("data set index %d outside [0, %d)", i, len(e.dataSets))
	}
	return nil
}

func (e *Engine) checkRow(out []float64) error {
	if len(out) != len(e.dataSets) {
		return models.Preconditionf("output row has %d elements, need %d", len(out), len(e.dataSets))
	}
	return nil
}

// ComputeForDataSetIndex fills out[j] with the statistic between data set i
// and data set j, for every j
func (e *Engine) ComputeForDataSetIndex(i int, out []float64) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	if err := e.checkRow(out); err != nil {
		return err
	}
	e.computeRow(i, out)
	return nil
}

func (e *Engine) computeRow(i int, out []float64) {
	seed := &e.dataSets[i]
	for j := range e.dataSets {
		out[j] = e.pair(seed, &e.dataSets[j])
	}
}

// ComputeAverageForDataSetIndices computes the row of every index and
// stores their element-wise mean in out. The indices are split into
// contiguous runs, one per worker, and each worker sums its run into its own
// accumulator; the accumulators are then added in run order.
func (e *Engine) ComputeAverageForDataSetIndices(indices []int, out []float64) error {
	if len(indices) == 0 {
		return models.NoInputf("no data set indices to average")
	}
	for _, i := range indices {
		if err := e.checkIndex(i); err != nil {
			return err
		}
	}
	if err := e.checkRow(out); err != nil {
		return err
	}

	workers := e.workers
	if workers > len(indices) {
		workers = len(indices)
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (len(indices) + workers - 1) / workers
	sums := make([][]float64, 0, workers)
	var wg sync.WaitGroup
	for lo := 0; lo < len(indices); lo += chunk {
		hi := lo + chunk
		if hi > len(indices) {
			hi = len(indices)
		}
		acc := make([]float64, len(e.dataSets))
		sums = append(sums, acc)
		wg.Add(1)
		go func(run []int, acc []float64) {
			defer wg.Done()
			row := make([]float64, len(e.dataSets))
			for _, i := range run {
				e.computeRow(i, row)
				floats.Add(acc, row)
			}
		}(indices[lo:hi], acc)
	}
	wg.Wait()

	for j := range out {
		out[j] = 0
	}
	for _, acc := range sums {
		floats.Add(out, acc)
	}
	floats.Scale(1/float64(len(indices)), out)
	return nil
}
