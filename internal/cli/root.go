package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override flags:
// NALANDA_FORMAT, NALANDA_LOG_LEVEL, NALANDA_TRACE_DB, ...
const EnvPrefix = "nalanda"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	LogLevel string // "debug" | "info" | "warn" | "error"

	// Env files loaded before flags are resolved. Missing files are skipped.
	EnvFiles []string

	v      *viper.Viper
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Logger returns the logger configured by --log-level, writing to w.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	level, err := parseLevel(o.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	o.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return o.logger
}

// NewRootCommand creates the root command for the nalanda CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{
		EnvFiles: []string{".env", ".env.local"},
		v:        viper.New(),
	}

	cmd := &cobra.Command{
		Use:   "nalanda",
		Short: "nalanda - reactive state runtime tooling",
		Long: `Tools for slices declared in CUE: validate dependency graphs,
run conformance scenarios against a real store and inspect persisted traces.

Every flag can also be set through the environment as NALANDA_<FLAG>,
with dashes replaced by underscores (e.g. NALANDA_LOG_LEVEL=debug).
.env and .env.local in the working directory are loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "runtime log level (debug|info|warn|error)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// resolve loads env files, binds the executing command's flags to the
// environment and re-reads global options through viper.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	for _, f := range o.EnvFiles {
		_ = godotenv.Load(f)
	}

	o.v.SetEnvPrefix(EnvPrefix)
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()
	if err := o.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	o.Verbose = o.v.GetBool("verbose")
	o.Format = o.v.GetString("format")
	o.LogLevel = o.v.GetString("log-level")

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if _, err := parseLevel(o.LogLevel); err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	return nil
}

// String returns the value of a command flag after environment overrides.
func (o *RootOptions) String(key string) string {
	return o.v.GetString(key)
}

// Bool returns the value of a command flag after environment overrides.
func (o *RootOptions) Bool(key string) bool {
	return o.v.GetBool(key)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
