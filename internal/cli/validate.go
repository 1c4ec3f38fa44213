package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/walletcore/internal/config"
)

// ValidationResult is the validate command's output.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	AppID        string   `json:"app_id,omitempty"`
	AuthServer   string   `json:"auth_server,omitempty"`
	Plugins      []string `json:"plugins"`
	SyncInterval string   `json:"sync_interval,omitempty"`
	RateInterval string   `json:"rate_interval,omitempty"`
	RatePairs    int      `json:"rate_pairs"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a config file",
		Long: `Validate a walletcore YAML config file against the config schema.

Defaults are applied before validation; the effective values are printed.

Exit codes:
  0 - Config is valid
  1 - Config failed validation
  2 - Config file could not be read

Examples:
  walletcore validate ./walletcore.yaml
  walletcore validate ./walletcore.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFile, fmt.Sprintf("cannot read %s", path), err.Error())
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}
	formatter.VerboseLog("Read %d bytes from %s", len(data), path)

	cfg, err := config.Parse(data)
	if err != nil {
		var cfgErr *config.ConfigError
		details := map[string]string{}
		if errors.As(err, &cfgErr) && cfgErr.Field != "" {
			details["field"] = cfgErr.Field
		}
		_ = formatter.Error(ErrCodeConfig, err.Error(), details)
		return WrapExitError(ExitFailure, "config is invalid", err)
	}

	result := ValidationResult{
		Valid:        true,
		AppID:        cfg.AppID,
		AuthServer:   cfg.AuthServer,
		Plugins:      cfg.Plugins,
		SyncInterval: cfg.SyncInterval.String(),
		RateInterval: cfg.RateInterval.String(),
		RatePairs:    len(cfg.RatePairs),
	}
	if result.Plugins == nil {
		result.Plugins = []string{}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  auth server:   %s\n", result.AuthServer)
	if len(result.Plugins) > 0 {
		fmt.Fprintf(w, "  plugins:       %s\n", strings.Join(result.Plugins, ", "))
	}
	fmt.Fprintf(w, "  sync interval: %s\n", result.SyncInterval)
	fmt.Fprintf(w, "  rate interval: %s\n", result.RateInterval)
	fmt.Fprintf(w, "  rate pairs:    %d\n", result.RatePairs)
	return nil
}
