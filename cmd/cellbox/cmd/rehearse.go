package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cellbox/cellbox/internal/cell"
	"github.com/cellbox/cellbox/internal/control"
)

var (
	flagRehearseCells  []string
	flagRehearseImage  string
	flagRehearseOffset uint64
)

func init() {
	rehearseCmd.Flags().StringArrayVar(&flagRehearseCells, "cell", nil, "Cell config to create while enabled (repeatable)")
	rehearseCmd.Flags().StringVar(&flagRehearseImage, "image", "", "Preload image for the cells (defaults to one zero page)")
	rehearseCmd.Flags().Uint64Var(&flagRehearseOffset, "target-offset", 0, "Preload image offset within cell RAM")
	rootCmd.AddCommand(rehearseCmd)
}

var rehearseCmd = &cobra.Command{
	Use:   "rehearse <system-config>",
	Short: "Run a full enable / cell-create / disable round trip",
	Long: `Rehearse drives the complete control protocol in one process:
enable the hypervisor, create the given cells, then disable again.
Combined with --backend sim this validates configurations and firmware
layout without touching the machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadSystemRequest(args[0])
		if err != nil {
			return err
		}
		svc, err := newService()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := exitStatus("enable", svc.Enable(ctx, req)); err != nil {
			return err
		}

		source := make([]byte, 0x1000)
		if flagRehearseImage != "" {
			source, err = os.ReadFile(flagRehearseImage)
			if err != nil {
				return fmt.Errorf("read preload image: %w", err)
			}
		}

		for _, path := range flagRehearseCells {
			config, err := loadCellConfig(path)
			if err != nil {
				return err
			}
			cellReq := control.CellRequest{
				Config: config,
				Images: []cell.PreloadImage{{
					Source:       source,
					TargetOffset: flagRehearseOffset,
					Size:         uint64(len(source)),
				}},
			}
			if err := exitStatus("cell create", svc.CellCreate(ctx, cellReq)); err != nil {
				return err
			}
		}

		if len(svc.OfflinedCPUs()) > 0 {
			fmt.Printf("offlined CPUs while enabled: %v\n", svc.OfflinedCPUs())
		}

		return exitStatus("disable", svc.Disable(ctx))
	},
}
