package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"wbcore/internal/models"
	"wbcore/pkg/correlation"
	"wbcore/pkg/dense"
	"wbcore/pkg/workspace"
)

// optionalMetric loads a metric when name is not empty
func optionalMetric(store *workspace.Store, name string) (*models.Metric, error) {
	if name == "" {
		return nil, nil
	}
	return store.GetMetric(name)
}

func newDenseCreateCommand(g *globals) *cobra.Command {
	var left, leftROI, right, rightROI, cerebellum, cerebellumROI string
	var volumeName, labelName string
	direction := &directionValue{value: dense.AlongColumn}

	cmd := &cobra.Command{
		Use:   "dense-create <output>",
		Short: "Combine surface and volume data into one dense matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := g.cfg.StructureTable()
			if err != nil {
				return err
			}
			return g.withStore(func(store *workspace.Store) error {
				var surfaces dense.SurfaceInputs
				var sources dense.Sources
				for _, slot := range []struct {
					name string
					dst  **models.Metric
				}{
					{left, &surfaces.Left}, {leftROI, &surfaces.LeftROI},
					{right, &surfaces.Right}, {rightROI, &surfaces.RightROI},
					{cerebellum, &surfaces.Cerebellum}, {cerebellumROI, &surfaces.CerebellumROI},
				} {
					m, err := optionalMetric(store, slot.name)
					if err != nil {
						return err
					}
					*slot.dst = m
				}
				sources.Left, sources.Right, sources.Cerebellum = surfaces.Left, surfaces.Right, surfaces.Cerebellum

				vol, err := optionalVolume(store, volumeName)
				if err != nil {
					return err
				}
				labels, err := optionalVolume(store, labelName)
				if err != nil {
					return err
				}
				sources.Volume = vol

				mapping, err := dense.Build(cmd.Context(), direction.value, vol, labels, surfaces, table)
				if err != nil {
					return err
				}
				numMaps, err := sources.NumberOfMaps()
				if err != nil {
					return err
				}
				matrix, err := dense.NewMatrixFor(mapping, numMaps)
				if err != nil {
					return err
				}
				names, err := dense.Assemble(mapping, sources, matrix)
				if err != nil {
					return err
				}
				log.Info(mapping.String())
				return store.PutDense(args[0], &workspace.Dense{Mapping: mapping, Matrix: matrix, MapNames: names})
			})
		},
	}
	cmd.Flags().StringVar(&left, "left", "", "left cortex metric")
	cmd.Flags().StringVar(&leftROI, "left-roi", "", "left cortex ROI metric")
	cmd.Flags().StringVar(&right, "right", "", "right cortex metric")
	cmd.Flags().StringVar(&rightROI, "right-roi", "", "right cortex ROI metric")
	cmd.Flags().StringVar(&cerebellum, "cerebellum", "", "cerebellum metric")
	cmd.Flags().StringVar(&cerebellumROI, "cerebellum-roi", "", "cerebellum ROI metric")
	cmd.Flags().StringVar(&volumeName, "volume", "", "volume data")
	cmd.Flags().StringVar(&labelName, "labels", "", "structure label volume selecting voxels")
	cmd.Flags().Var(direction, "direction", "dense index direction: COLUMN or ROW")
	return cmd
}

func newCorrelateCommand(g *globals) *cobra.Command {
	var indices []int
	var coords []float64
	var rawPath string

	cmd := &cobra.Command{
		Use:   "correlate <dense> <output>",
		Short: "Correlate the series at one or more dense indices with every other series",
		Long: "Correlate the series at one or more dense indices with every other series. " +
			"With several indices the rows are averaged. The result is stored as a one-map dense matrix.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(indices) == 0 && len(coords) == 0 {
				return errors.New("at least one --index or --coord is required")
			}
			if len(coords)%3 != 0 {
				return errors.Errorf("--coord takes x,y,z triples, got %d values", len(coords))
			}
			settings, err := g.cfg.CorrelationSettings()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("covariance") {
				if cov, _ := flags.GetBool("covariance"); cov {
					settings.SetMode(correlation.Covariance)
				} else {
					settings.SetMode(correlation.Correlation)
				}
			}
			settings.SetFisherZEnabled(boolSetting(flags, "fisher-z", settings.IsFisherZEnabled()))
			settings.SetNoDemeanEnabled(boolSetting(flags, "no-demean", settings.IsNoDemeanEnabled()))

			return g.withStore(func(store *workspace.Store) error {
				d, err := store.GetDense(args[0])
				if err != nil {
					return err
				}
				seeds, err := seedIndices(d.Mapping, indices, coords)
				if err != nil {
					return err
				}
				raw := d.Matrix.RawMatrix()
				var series []correlation.Series
				if d.Mapping.Direction() == dense.AlongRow {
					series = correlation.SeriesFromColumns(raw.Data, raw.Rows, raw.Cols, raw.Stride)
				} else {
					series = correlation.SeriesFromRows(raw.Data, raw.Rows, raw.Cols, raw.Stride)
				}
				engine, err := correlation.New(settings, series)
				if err != nil {
					return err
				}
				engine.SetWorkers(g.cfg.Workers())

				row := make([]float64, engine.NumberOfDataSets())
				if len(seeds) == 1 {
					err = engine.ComputeForDataSetIndex(seeds[0], row)
				} else {
					err = engine.ComputeAverageForDataSetIndices(seeds, row)
				}
				if err != nil {
					return err
				}
				log.Infof("%s over %d series: min %g, max %g", settings, len(row), floats.Min(row), floats.Max(row))

				if rawPath != "" {
					if err := writeRaw(rawPath, row); err != nil {
						return err
					}
				}

				out, err := dense.Restore(dense.AlongColumn, d.Mapping.Entries(), surfaceCounts(d.Mapping), d.Mapping.VolumeDims(), d.Mapping.VolumeSform())
				if err != nil {
					return err
				}
				matrix, err := dense.NewMatrix(len(row), 1)
				if err != nil {
					return err
				}
				for i, v := range row {
					if err := matrix.SetRow([]float64{v}, i); err != nil {
						return err
					}
				}
				name := fmt.Sprintf("%s with %v", settings.Mode(), seeds)
				return store.PutDense(args[1], &workspace.Dense{Mapping: out, Matrix: matrix, MapNames: []string{name}})
			})
		},
	}
	cmd.Flags().IntSliceVar(&indices, "index", nil, "dense index of a seed series (repeatable)")
	cmd.Flags().Float64SliceVar(&coords, "coord", nil, "millimetre x,y,z of a seed voxel, resolved to the nearest voxel (repeatable)")
	cmd.Flags().Bool("covariance", false, "compute covariance instead of correlation")
	cmd.Flags().Bool("fisher-z", false, "apply the Fisher z transform to correlations")
	cmd.Flags().Bool("no-demean", false, "do not remove series means before correlating")
	cmd.Flags().StringVar(&rawPath, "raw", "", "also write the result as raw float32 to this file")
	return cmd
}

// seedIndices appends the dense index of the voxel nearest to each
// coordinate triple to the explicit indices
func seedIndices(m *dense.Mapping, indices []int, coords []float64) ([]int, error) {
	seeds := append([]int(nil), indices...)
	if len(coords) == 0 {
		return seeds, nil
	}
	loc, err := dense.NewVoxelLocator(m)
	if err != nil {
		return nil, err
	}
	for n := 0; n+2 < len(coords); n += 3 {
		p := r3.Vec{X: coords[n], Y: coords[n+1], Z: coords[n+2]}
		inside, err := loc.Inside(p)
		if err != nil {
			return nil, err
		}
		if !inside {
			log.Warnf("coordinate %v lies outside the volume grid, using the nearest voxel", p)
		}
		idx, dist := loc.Nearest(p)
		log.Debugf("coordinate %v resolved to dense index %d (%.3g mm away)", p, idx, dist)
		seeds = append(seeds, idx)
	}
	return seeds, nil
}

func surfaceCounts(m *dense.Mapping) map[models.Structure]int {
	counts := make(map[models.Structure]int)
	for _, s := range m.SurfaceStructures() {
		counts[s] = m.NumberOfVertices(s)
	}
	return counts
}

// writeRaw writes values as raw float32, reporting a failed Close when
// nothing failed before it
func writeRaw(path string, values []float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "error closing %s", path)
		}
	}()
	w := bufio.NewWriter(f)
	if err := workspace.WriteRawFloat32(w, values); err != nil {
		return err
	}
	return w.Flush()
}
