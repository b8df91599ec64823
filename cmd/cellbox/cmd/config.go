package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cellbox/cellbox/internal/cell"
	"github.com/cellbox/cellbox/internal/configfile"
	"github.com/cellbox/cellbox/internal/fwimage"
)

var (
	flagBuildOut string

	flagStubOut    string
	flagStubBssEnd uint64
	flagStubPercpu uint64
	flagStubEntry  uint64
	flagStubPad    uint64
)

func init() {
	buildCellCmd.Flags().StringVarP(&flagBuildOut, "output", "o", "", "Output file (required)")
	_ = buildCellCmd.MarkFlagRequired("output")
	configCmd.AddCommand(buildCellCmd)
	configCmd.AddCommand(inspectCellCmd)
	rootCmd.AddCommand(configCmd)

	firmwareStubCmd.Flags().StringVarP(&flagStubOut, "output", "o", fwimage.DefaultName, "Output file")
	firmwareStubCmd.Flags().Uint64Var(&flagStubBssEnd, "bss-end", 0x20000, "Core image bss end offset")
	firmwareStubCmd.Flags().Uint64Var(&flagStubPercpu, "percpu-size", 0x8000, "Per-CPU data size")
	firmwareStubCmd.Flags().Uint64Var(&flagStubEntry, "entry", fwimage.HeaderSize, "Entry point offset")
	firmwareStubCmd.Flags().Uint64Var(&flagStubPad, "image-size", 0x1000, "Total stub image size")
	firmwareCmd.AddCommand(firmwareStubCmd)
	rootCmd.AddCommand(firmwareCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Build and inspect binary configurations",
}

var buildCellCmd = &cobra.Command{
	Use:   "build-cell <cell-config.yaml>",
	Short: "Compile a YAML cell configuration to its binary descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := configfile.LoadCell(args[0])
		if err != nil {
			return err
		}
		return os.WriteFile(flagBuildOut, desc.Encode(), 0o644)
	},
}

var inspectCellCmd = &cobra.Command{
	Use:   "inspect-cell <descriptor.cell>",
	Short: "Decode a binary cell descriptor and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		desc, err := cell.Decode(data)
		if err != nil {
			return err
		}
		fmt.Printf("name:            %s\n", desc.Name)
		fmt.Printf("cpus:            %s\n", desc.CPUSet.String())
		fmt.Printf("memory regions:  %d\n", len(desc.MemoryRegions))
		for i, r := range desc.MemoryRegions {
			kind := ""
			if i == 0 {
				kind = " (RAM)"
			}
			fmt.Printf("  %d: phys %v virt 0x%x flags 0x%x%s\n", i, r, r.VirtStart, r.AccessFlags, kind)
		}
		fmt.Printf("pio bitmap:      %d bytes\n", len(desc.PIOBitmap))
		fmt.Printf("irq lines:       %v\n", desc.IRQLines)
		fmt.Printf("pci devices:     %d\n", len(desc.PCIDevices))
		return nil
	},
}

var firmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Firmware image helpers",
}

var firmwareStubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Write a header-only stub firmware image for sim rehearsal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagStubPad < fwimage.HeaderSize {
			return fmt.Errorf("image size %d smaller than the header (%d bytes)", flagStubPad, fwimage.HeaderSize)
		}
		img := make([]byte, flagStubPad)
		copy(img, fwimage.EncodeHeader(fwimage.Header{
			BssEnd:     flagStubBssEnd,
			PercpuSize: flagStubPercpu,
			Entry:      flagStubEntry,
		}))
		return os.WriteFile(flagStubOut, img, 0o644)
	},
}
