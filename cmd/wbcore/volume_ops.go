package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wbcore/internal/models"
	"wbcore/pkg/extrema"
	"wbcore/pkg/labelroi"
	"wbcore/pkg/smoothing"
	"wbcore/pkg/visualization"
	"wbcore/pkg/workspace"
)

// optionalVolume loads a volume when name is not empty
func optionalVolume(store *workspace.Store, name string) (*models.Volume, error) {
	if name == "" {
		return nil, nil
	}
	return store.GetVolume(name)
}

func newLabelToROICommand(g *globals) *cobra.Command {
	var name string
	var key, mapIndex int

	cmd := &cobra.Command{
		Use:   "label-to-roi <label-volume> <output>",
		Short: "Make a 0/1 ROI volume from the voxels carrying one label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			byName, byKey := cmd.Flags().Changed("name"), cmd.Flags().Changed("key")
			if byName == byKey {
				return errors.New("exactly one of --name or --key is required")
			}
			sel := labelroi.ByKey(key)
			if byName {
				sel = labelroi.ByName(name)
			}
			return g.withStore(func(store *workspace.Store) error {
				in, err := store.GetVolume(args[0])
				if err != nil {
					return err
				}
				out, err := labelroi.Extract(cmd.Context(), in, sel, mapIndex)
				if err != nil {
					return err
				}
				return store.PutVolume(args[1], out)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "label name to select")
	cmd.Flags().IntVar(&key, "key", 0, "label key to select")
	cmd.Flags().IntVar(&mapIndex, "map", labelroi.AllMaps, "map to use (default every map)")
	return cmd
}

func newSmoothCommand(g *globals) *cobra.Command {
	var sigma float64
	var roiName string
	var subvolume int

	cmd := &cobra.Command{
		Use:   "smooth <volume> <output>",
		Short: "Gaussian smoothing of a volume, optionally restricted to an ROI",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixZeros := boolSetting(cmd.Flags(), "fix-zeros", g.cfg.Smoothing.FixZeros)
			return g.withStore(func(store *workspace.Store) error {
				in, err := store.GetVolume(args[0])
				if err != nil {
					return err
				}
				roi, err := optionalVolume(store, roiName)
				if err != nil {
					return err
				}
				out, err := smoothing.Smooth(cmd.Context(), in, sigma, roi, fixZeros, subvolume)
				if err != nil {
					return err
				}
				return store.PutVolume(args[1], out)
			})
		},
	}
	cmd.Flags().Float64Var(&sigma, "sigma", 1, "Gaussian kernel sigma in mm")
	cmd.Flags().StringVar(&roiName, "roi", "", "ROI volume restricting the smoothing")
	cmd.Flags().Bool("fix-zeros", false, "treat zero values as missing data")
	cmd.Flags().IntVar(&subvolume, "subvolume", smoothing.AllSubvolumes, "smooth only this map")
	return cmd
}

func newParcelSmoothCommand(g *globals) *cobra.Command {
	var sigma float64
	var subvolume int

	cmd := &cobra.Command{
		Use:   "parcel-smooth <volume> <label-volume> <output>",
		Short: "Smooth within each labelled parcel independently",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := smoothing.ParcelOptions{
				FixZeros:  boolSetting(cmd.Flags(), "fix-zeros", g.cfg.Smoothing.FixZeros),
				Subvolume: subvolume,
				Workers:   g.cfg.Workers(),
				Progress:  g.progressCallback(),
			}
			return g.withStore(func(store *workspace.Store) error {
				in, err := store.GetVolume(args[0])
				if err != nil {
					return err
				}
				labels, err := store.GetVolume(args[1])
				if err != nil {
					return err
				}
				out, err := smoothing.ParcelSmooth(cmd.Context(), in, labels, sigma, opts)
				if err != nil {
					return err
				}
				return store.PutVolume(args[2], out)
			})
		},
	}
	cmd.Flags().Float64Var(&sigma, "sigma", 1, "Gaussian kernel sigma in mm")
	cmd.Flags().Bool("fix-zeros", false, "treat zero values as missing data")
	cmd.Flags().IntVar(&subvolume, "subvolume", smoothing.AllSubvolumes, "smooth only this map")
	return cmd
}

func newExtremaROICommand(g *globals) *cobra.Command {
	var limit, sigma float64
	var roiName string
	var subvolume int
	overlap := &overlapValue{}

	cmd := &cobra.Command{
		Use:   "extrema-roi <volume> <output>",
		Short: "Grow one ROI map around every nonzero voxel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("overlap") {
				o, err := g.cfg.OverlapLogic()
				if err != nil {
					return err
				}
				overlap.value = o
			}
			return g.withStore(func(store *workspace.Store) error {
				in, err := store.GetVolume(args[0])
				if err != nil {
					return err
				}
				roi, err := optionalVolume(store, roiName)
				if err != nil {
					return err
				}
				out, err := extrema.Generate(cmd.Context(), in, limit, extrema.Options{
					Sigma:     sigma,
					ROI:       roi,
					Overlap:   overlap.value,
					Subvolume: subvolume,
					Progress:  g.progressCallback(),
				})
				if err != nil {
					return err
				}
				log.Infof("generated %d regions with %s overlap logic", out.NumberOfMaps(), overlap.value)
				return store.PutVolume(args[1], out)
			})
		},
	}
	cmd.Flags().Float64Var(&limit, "limit", 2, "region radius in mm")
	cmd.Flags().Float64Var(&sigma, "sigma", 0, "Gaussian weighting sigma (0 gives flat regions)")
	cmd.Flags().StringVar(&roiName, "roi", "", "ROI volume restricting seeds and regions")
	cmd.Flags().Var(overlap, "overlap", "overlap logic: ALLOW, CLOSEST or EXCLUDE")
	cmd.Flags().IntVar(&subvolume, "subvolume", extrema.AllSubvolumes, "search only this map for seeds")
	return cmd
}

func newPreviewCommand(g *globals) *cobra.Command {
	var axis string
	var mapIndex, component int

	cmd := &cobra.Command{
		Use:   "preview <volume> <output-dir>",
		Short: "Save every slice of one volume map as a JPEG image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(func(store *workspace.Store) error {
				vol, err := store.GetVolume(args[0])
				if err != nil {
					return err
				}
				viewer, err := visualization.NewViewer(vol, mapIndex, component)
				if err != nil {
					return err
				}
				n, err := viewer.SaveSliceSequence(axis, args[1])
				if err != nil {
					return err
				}
				low, high := viewer.Range()
				log.Infof("saved %d slices to %s (intensity range %g to %g)", n, args[1], low, high)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&axis, "axis", "z", "slice axis: x, y or z")
	cmd.Flags().IntVar(&mapIndex, "map", 0, "map to render")
	cmd.Flags().IntVar(&component, "component", 0, "component to render")
	return cmd
}
