package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cellbox/cellbox/internal/barrier"
	"github.com/cellbox/cellbox/internal/control"
	"github.com/cellbox/cellbox/internal/fwimage"
	"github.com/cellbox/cellbox/internal/hotplug"
	"github.com/cellbox/cellbox/internal/hypercall"
	"github.com/cellbox/cellbox/internal/physmap"
)

var (
	flagFirmwareDir  string
	flagFirmwareName string
	flagBackend      string
	flagVerbose      bool

	flagSimMemBase uint64
	flagSimMemSize uint64
)

var rootCmd = &cobra.Command{
	Use:   "cellbox",
	Short: "Control plane for the cellbox partitioning hypervisor",
	Long: `cellbox transitions the machine into a hypervisor-controlled state,
carves out isolated cells with dedicated CPUs and memory, and reverses
the transition.

The sim backend runs the full control protocol against a simulated
platform (in-process memory window, simulated hotplug and call gate),
which is useful to validate configurations and firmware layout without
touching the machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFirmwareDir, "firmware-dir", "/lib/firmware", "Directory holding the hypervisor firmware image")
	rootCmd.PersistentFlags().StringVar(&flagFirmwareName, "firmware", fwimage.DefaultName, "Firmware image file name")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "native", "Platform backend (native, sim)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().Uint64Var(&flagSimMemBase, "sim-mem-base", 0x30000000, "Simulated physical window base (sim backend)")
	rootCmd.PersistentFlags().Uint64Var(&flagSimMemSize, "sim-mem-size", 256<<20, "Simulated physical window size (sim backend)")
}

// newService assembles the control plane for the selected backend.
func newService() (*control.Service, error) {
	fw := &fwimage.Loader{Dir: flagFirmwareDir, Name: flagFirmwareName}

	switch flagBackend {
	case "native":
		mapper, err := physmap.Native()
		if err != nil {
			return nil, err
		}
		return control.New(control.Config{
			Mapper:   mapper,
			Hotplug:  hotplug.Sysfs{},
			Gate:     hypercall.Unavailable{},
			Executor: barrier.ThreadExecutor{},
			Firmware: fw,
		}), nil
	case "sim":
		return control.New(control.Config{
			Mapper:   physmap.NewSimMapper(flagSimMemBase, flagSimMemSize),
			Hotplug:  hotplug.NewSim(runtime.NumCPU()),
			Gate:     &hypercall.Sim{},
			Executor: barrier.ThreadExecutor{},
			Firmware: fw,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want native or sim)", flagBackend)
	}
}

// exitStatus converts an operation error to the process exit path: the
// wire status code is reported, and a nonzero status exits nonzero.
func exitStatus(op string, err error) error {
	code := control.StatusCode(err)
	if code == 0 {
		return nil
	}
	return fmt.Errorf("%s failed with status %d: %v", op, code, err)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cellbox: %v\n", err)
		os.Exit(1)
	}
}
