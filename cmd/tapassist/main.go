// Command tapassist turns taps and long presses into spoken and haptic
// feedback, announces the time on the hour and half hour, and publishes
// what it does to MQTT.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/tapassist/internal/config"
	"github.com/sweeney/tapassist/internal/gpio"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "tapassist",
		Short:        "Gesture-driven speech and haptic assistant",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("config file (default %s if present)", config.DefaultPath))

	root.AddCommand(
		newRunCmd(&configPath),
		newStateCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), *configPath)
		},
	}
}

func newStateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current button state and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			pressed, err := gpio.ReadButton(cfg.GPIO.Chip, cfg.GPIO.ButtonPin)
			if err != nil {
				return fmt.Errorf("read button: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "button %s/%d: %s\n", cfg.GPIO.Chip, cfg.GPIO.ButtonPin, buttonState(pressed))
			return nil
		},
	}
}

func newConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.Load(*configPath); err != nil {
				return err
			}
			out, err := config.Effective(*configPath)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func buttonState(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
