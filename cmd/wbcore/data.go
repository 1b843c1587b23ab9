package main

import (
	"bufio"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wbcore/internal/models"
	"wbcore/pkg/workspace"
)

func newImportVolumeCommand(g *globals) *cobra.Command {
	var dims []int
	var sform []float64
	var components int
	vt := &volumeTypeValue{value: models.VolumeAnatomy}

	cmd := &cobra.Command{
		Use:   "import-volume <name> <raw-file>",
		Short: "Import a raw little-endian float32 volume into the workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(dims) < 3 || len(dims) > 4 {
				return errors.Errorf("--dims needs x,y,z or x,y,z,maps, got %v", dims)
			}
			for _, d := range dims {
				if d < 1 {
					return models.Preconditionf("--dims must be positive, got %v", dims)
				}
			}
			if components < 1 {
				return models.Preconditionf("--components must be positive, got %d", components)
			}
			s, err := parseSform(sform)
			if err != nil {
				return err
			}
			vol := models.NewVolume(dims, s, components, vt.value)

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			data, err := workspace.ReadRawFloat32(bufio.NewReader(f), len(vol.Data))
			if err != nil {
				return errors.Wrapf(err, "error reading %s", args[1])
			}
			vol.Data = data

			return g.withStore(func(store *workspace.Store) error {
				if err := store.PutVolume(args[0], vol); err != nil {
					return err
				}
				log.Infof("imported %s volume %s with dimensions %v", vt.value, args[0], vol.Dimensions())
				return nil
			})
		},
	}
	cmd.Flags().IntSliceVar(&dims, "dims", nil, "volume dimensions x,y,z[,maps]")
	cmd.Flags().Float64SliceVar(&sform, "sform", nil, "12 row-major sform values (default identity)")
	cmd.Flags().IntVar(&components, "components", 1, "values per voxel")
	cmd.Flags().Var(vt, "type", "volume type: ANATOMY, FUNCTIONAL or LABEL")
	_ = cmd.MarkFlagRequired("dims")
	return cmd
}

func newImportMetricCommand(g *globals) *cobra.Command {
	var structureName string
	var vertices, maps int

	cmd := &cobra.Command{
		Use:   "import-metric <name> <raw-file>",
		Short: "Import raw float32 per-vertex surface data (map-major) into the workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			structure, ok := models.StructureFromName(structureName)
			if !ok || !structure.IsSurface() {
				return errors.Errorf("%q is not a surface structure", structureName)
			}
			if vertices < 1 || maps < 1 {
				return errors.Errorf("--vertices and --maps must be positive")
			}
			metric := models.NewMetric(structure, vertices, maps)

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			data, err := workspace.ReadRawFloat32(bufio.NewReader(f), len(metric.Data))
			if err != nil {
				return errors.Wrapf(err, "error reading %s", args[1])
			}
			metric.Data = data

			return g.withStore(func(store *workspace.Store) error {
				return store.PutMetric(args[0], metric)
			})
		},
	}
	cmd.Flags().StringVar(&structureName, "structure", models.CortexLeft.String(), "surface structure")
	cmd.Flags().IntVar(&vertices, "vertices", 0, "number of vertices")
	cmd.Flags().IntVar(&maps, "maps", 1, "number of maps")
	_ = cmd.MarkFlagRequired("vertices")
	return cmd
}

func newAddLabelCommand(g *globals) *cobra.Command {
	var mapIndex, key int
	var name string
	var unassigned bool

	cmd := &cobra.Command{
		Use:   "add-label <volume>",
		Short: "Register a key and name in a label volume's label table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(func(store *workspace.Store) error {
				vol, err := store.GetVolume(args[0])
				if err != nil {
					return err
				}
				if vol.Type != models.VolumeLabel {
					return models.Preconditionf("volume %s is %s, not a label volume", args[0], vol.Type)
				}
				if mapIndex < 0 || mapIndex >= vol.NumberOfMaps() {
					return models.IndexRangef("map %d outside [0, %d)", mapIndex, vol.NumberOfMaps())
				}
				table := vol.MapLabelTable(mapIndex)
				if unassigned {
					table.SetUnassignedKey(key)
				} else {
					table.Add(name, key)
				}
				return store.PutVolume(args[0], vol)
			})
		},
	}
	cmd.Flags().IntVar(&mapIndex, "map", 0, "map whose label table is changed")
	cmd.Flags().IntVar(&key, "key", 0, "label key")
	cmd.Flags().StringVar(&name, "name", "", "label name")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "make the key the unassigned key instead of adding a name")
	return cmd
}

func newListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the contents of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(func(store *workspace.Store) error {
				items, err := store.List()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KIND\tNAME\tDETAIL\tUPDATED")
				for _, it := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Kind, it.Name, it.Detail, it.Updated.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}
}

func newExportVolumeCommand(g *globals) *cobra.Command {
	var mapIndex, component int

	cmd := &cobra.Command{
		Use:   "export-volume <name> <raw-file>",
		Short: "Write a stored volume as raw little-endian float32",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(func(store *workspace.Store) error {
				vol, err := store.GetVolume(args[0])
				if err != nil {
					return err
				}
				values := vol.Data
				if mapIndex >= 0 {
					if mapIndex >= vol.NumberOfMaps() || component < 0 || component >= vol.NumberOfComponents() {
						return models.IndexRangef("map %d component %d not in volume %s", mapIndex, component, args[0])
					}
					values = vol.Frame(mapIndex, component)
				}

				return writeRaw(args[1], values)
			})
		},
	}
	cmd.Flags().IntVar(&mapIndex, "map", -1, "export only this map (default all data)")
	cmd.Flags().IntVar(&component, "component", 0, "component exported with --map")
	return cmd
}
