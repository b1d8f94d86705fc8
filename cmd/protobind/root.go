package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shhac/protobind/internal/app"
	"github.com/spf13/cobra"
)

// rootCommand holds what every subcommand shares: the configuration, its
// flag overrides, the streams and the App built once flags are parsed.
type rootCommand struct {
	cfg    *app.Config
	app    *app.App
	cmd    *cobra.Command
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) (*rootCommand, error) {
	cfg, err := app.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	rc := &rootCommand{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}
	rc.cmd = &cobra.Command{
		Use:   "protobind",
		Short: "Bind client stubs to protobuf service descriptors and call them",
		Long: `protobind resolves encoded protobuf file descriptors against their
dependency tables, binds a client stub description to the service they
declare and calls the resulting methods over gRPC.

Descriptors, dependencies and stub come together in a bundle: a YAML or
JSON file, or a bundle saved under the storage directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rc.setup,
	}
	rc.cmd.SetIn(stdin)
	rc.cmd.SetOut(stdout)
	rc.cmd.SetErr(stderr)

	flags := rc.cmd.PersistentFlags()
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	flags.BoolVar(&cfg.LogFile, "log-file", cfg.LogFile, "write JSON logs to the platform log directory instead of stderr")
	flags.StringVar(&cfg.StoragePath, "storage", cfg.StoragePath, "bundle storage directory (default ~/.protobind)")
	flags.StringVar(&cfg.DependencyMode, "dependency-mode", cfg.DependencyMode, "handling of missing imports: lenient or strict")
	flags.BoolVar(&cfg.WellKnownFallback, "well-known", cfg.WellKnownFallback, "link missing google/protobuf imports against the well-known types")
	flags.BoolVar(&cfg.Repairs, "repairs", cfg.Repairs, "repair common descriptor defects before linking")
	flags.StringVar(&cfg.MetadataConvention, "metadata-type", cfg.MetadataConvention,
		`stub type carrying call metadata: "default" (metadata.MD), "headers" (grpc.Headers) or a qualified name`)
	flags.DurationVar(&cfg.CallTimeout, "timeout", cfg.CallTimeout, "bound on network operations, 0 for none")

	rc.cmd.AddCommand(
		rc.bindCmd(),
		rc.servicesCmd(),
		rc.describeCmd(),
		rc.callCmd(),
		rc.listCmd(),
		rc.fetchCmd(),
		rc.bundleCmd(),
		rc.targetsCmd(),
	)
	return rc, nil
}

// setup builds the App once flags have overridden the environment.
func (rc *rootCommand) setup(_ *cobra.Command, _ []string) error {
	a, err := app.New(rc.cfg, rc.stderr)
	if err != nil {
		return err
	}
	rc.app = a
	return nil
}

// execute runs the command line and releases the App afterwards.
func (rc *rootCommand) execute(ctx context.Context, args []string) error {
	rc.cmd.SetArgs(args)
	err := rc.cmd.ExecuteContext(ctx)
	if rc.app != nil {
		if closeErr := rc.app.Close(); closeErr != nil {
			rc.app.Logger().Warn("shutdown failed", slog.Any("error", closeErr))
		}
	}
	return err
}

func (rc *rootCommand) printf(format string, a ...any) {
	fmt.Fprintf(rc.stdout, format, a...)
}

var errNoTarget = errors.New("no server address: pass --addr or connect once to remember a target")
