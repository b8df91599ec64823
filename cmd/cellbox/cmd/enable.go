package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cellbox/cellbox/internal/configfile"
)

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

var enableCmd = &cobra.Command{
	Use:   "enable <system-config>",
	Short: "Load the hypervisor and take control of the machine",
	Long: `Enable loads the firmware image, lays it out inside the reserved
physical region named by the system configuration and drives every
online CPU through the enter transition.

The system configuration is a YAML file (*.yaml, *.yml) or a prebuilt
binary request.`,
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
		return exitStatus("enable", svc.Enable(cmd.Context(), req))
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Return the machine to native operation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		return exitStatus("disable", svc.Disable(cmd.Context()))
	},
}

func loadSystemRequest(path string) ([]byte, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return configfile.LoadSystem(path)
	}
	req, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read system config: %w", err)
	}
	return req, nil
}
