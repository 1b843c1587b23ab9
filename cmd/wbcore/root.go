package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wbcore/pkg/config"
	"wbcore/pkg/progress"
	"wbcore/pkg/workspace"
)

// globals holds the persistent flags and the loaded configuration
type globals struct {
	configPath   string
	workspaceDir string
	verbose      bool
	progress     bool

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:          "wbcore",
		Short:        "Dense mapping, ROI, smoothing and correlation operations on volume and surface data",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			if g.verbose || cfg.Output.Verbose {
				log.SetLevel(log.DebugLevel)
			}
			log.Debugf("loaded configuration from %s", g.configPath)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "wbcore.yaml", "path to YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&g.workspaceDir, "workspace", "w", ".wbcore", "workspace directory holding stored data")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&g.progress, "progress", "p", false, "draw a progress bar for long operations")

	rootCmd.AddCommand(
		newInitConfigCommand(g),
		newImportVolumeCommand(g),
		newImportMetricCommand(g),
		newAddLabelCommand(g),
		newListCommand(g),
		newExportVolumeCommand(g),
		newLabelToROICommand(g),
		newSmoothCommand(g),
		newParcelSmoothCommand(g),
		newExtremaROICommand(g),
		newDenseCreateCommand(g),
		newCorrelateCommand(g),
		newPreviewCommand(g),
	)
	return rootCmd
}

// withStore opens the workspace for the duration of fn
func (g *globals) withStore(fn func(*workspace.Store) error) error {
	store, err := workspace.Open(g.workspaceDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warnf("error closing workspace: %v", cerr)
		}
	}()
	return fn(store)
}

// progressCallback returns a console bar when progress output is enabled
func (g *globals) progressCallback() progress.Callback {
	if !g.progress {
		return nil
	}
	return progress.Console(os.Stderr)
}

func newInitConfigCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a configuration file holding the default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			log.Infof("wrote default configuration to %s", path)
			return nil
		},
	}
}
