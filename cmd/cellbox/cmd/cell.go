package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cellbox/cellbox/internal/cell"
	"github.com/cellbox/cellbox/internal/configfile"
	"github.com/cellbox/cellbox/internal/control"
)

var (
	flagCellImage  string
	flagCellOffset uint64
)

func init() {
	cellCreateCmd.Flags().StringVar(&flagCellImage, "image", "", "Preload image copied into cell RAM (required)")
	cellCreateCmd.Flags().Uint64Var(&flagCellOffset, "target-offset", 0, "Preload image offset within cell RAM")
	_ = cellCreateCmd.MarkFlagRequired("image")

	cellCmd.AddCommand(cellCreateCmd)
	cellCmd.AddCommand(cellDestroyCmd)
	rootCmd.AddCommand(cellCmd)
}

var cellCmd = &cobra.Command{
	Use:   "cell",
	Short: "Manage isolated cells",
}

var cellCreateCmd = &cobra.Command{
	Use:   "create <cell-config>",
	Short: "Create a cell with dedicated CPUs and memory",
	Long: `Create validates the cell configuration, takes the cell's CPUs
offline, loads the preload image into the cell's RAM and instantiates
the cell. The cell configuration is a YAML file (*.yaml, *.yml) or a
prebuilt binary descriptor.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadCellConfig(args[0])
		if err != nil {
			return err
		}
		source, err := os.ReadFile(flagCellImage)
		if err != nil {
			return fmt.Errorf("read preload image: %w", err)
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		req := control.CellRequest{
			Config: config,
			Images: []cell.PreloadImage{{
				Source:       source,
				TargetOffset: flagCellOffset,
				Size:         uint64(len(source)),
			}},
		}
		return exitStatus("cell create", svc.CellCreate(cmd.Context(), req))
	},
}

var cellDestroyCmd = &cobra.Command{
	Use:   "destroy <name>",
	Short: "Destroy a cell (not supported by this loader)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		return exitStatus("cell destroy", svc.CellDestroy(cmd.Context()))
	},
}

func loadCellConfig(path string) ([]byte, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		desc, err := configfile.LoadCell(path)
		if err != nil {
			return nil, err
		}
		return desc.Encode(), nil
	}
	config, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cell config: %w", err)
	}
	return config, nil
}
