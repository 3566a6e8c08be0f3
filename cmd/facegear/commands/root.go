package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "facegear",
	Short: "Control plane for the facegear animatronic face device",
	Long: `facegear - device control plane.

Runs the two services an unattended facegear unit needs:

  provisioning   Wi-Fi station arbitration with a captive setup portal
                 (HTTP form on :80, DNS catch-all on :53) raised whenever
                 the device has no working network.
  face protocol  JSON command channel on :8080/ws that drives the face
                 rig (expression, gaze, captions, visemes) and audio.

Examples:
  facegear run
  facegear run --config /etc/facegear/facegear.yaml
  facegear version`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
