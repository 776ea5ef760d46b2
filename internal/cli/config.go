package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/engine"
)

// ConfigSummary describes validated settings without exposing secrets.
type ConfigSummary struct {
	Host                string `json:"host"`
	Mode                string `json:"mode"`
	IntervalMs          int64  `json:"intervalMs"`
	Debug               bool   `json:"debug"`
	Auth                string `json:"auth"` // "basic", "bearer", or "none"
	IncludeTeamMetadata bool   `json:"includeTeamMetadata"`
}

func (s ConfigSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host:          %s\n", s.Host)
	fmt.Fprintf(&b, "Mode:          %s", s.Mode)
	if s.IntervalMs > 0 {
		fmt.Fprintf(&b, " (every %dms)", s.IntervalMs)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Debug:         %t\n", s.Debug)
	fmt.Fprintf(&b, "Auth:          %s\n", s.Auth)
	fmt.Fprintf(&b, "Team metadata: %t", s.IncludeTeamMetadata)
	return b.String()
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect analytics configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var noEnv bool
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate an app-config file",
		Long: `Validate an app-config document (YAML, JSON, or CUE) against the
analytics schema, apply PULSE_ANALYTICS_* environment overrides, and
print the resulting settings.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			_, settings, err := loadSettings(args[0], !noEnv)
			if err != nil {
				return configFailure(f, err)
			}
			return f.Success(summarize(settings))
		},
	}
	cmd.Flags().BoolVar(&noEnv, "no-env", false, "ignore PULSE_ANALYTICS_* environment overrides")
	return cmd
}

// loadSettings reads a config file, overlays the environment when
// withEnv is set, revalidates, and extracts typed settings.
func loadSettings(path string, withEnv bool) (config.Values, config.Settings, error) {
	values, err := config.LoadFile(path)
	if err != nil {
		return nil, config.Settings{}, err
	}
	if withEnv {
		if err := config.ApplyEnv(values); err != nil {
			return nil, config.Settings{}, engine.NewConfigError(config.Namespace, err)
		}
		if err := config.Validate(values); err != nil {
			return nil, config.Settings{}, err
		}
	}
	settings, err := config.Read(values)
	if err != nil {
		return nil, config.Settings{}, err
	}
	return values, settings, nil
}

// configFailure maps a loadSettings error to output and an exit code.
func configFailure(f *OutputFormatter, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "config file not found", err)
	}
	return f.Fail(ExitFailure, ErrCodeConfigInvalid, "invalid configuration", err)
}

func summarize(s config.Settings) ConfigSummary {
	auth := "none"
	switch {
	case s.BasicAuthToken != "":
		auth = "basic"
	case s.BearerAuthToken != "":
		auth = "bearer"
	}
	return ConfigSummary{
		Host:                s.Host,
		Mode:                engine.ModeFor(s.Interval).String(),
		IntervalMs:          s.Interval.Milliseconds(),
		Debug:               s.Debug,
		Auth:                auth,
		IncludeTeamMetadata: s.IncludeTeamMetadata,
	}
}
