package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shhac/protobind/internal/binding"
	"github.com/shhac/protobind/internal/domain"
	perrors "github.com/shhac/protobind/internal/errors"
	"github.com/shhac/protobind/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// targetFlags are the connection flags shared by commands that talk to a
// server.
type targetFlags struct {
	address        string
	tls            bool
	skipVerify     bool
	caFile         string
	clientCertFile string
	clientKeyFile  string
}

func (f *targetFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.address, "addr", "a", "", "server address host:port (default: most recent target)")
	flags.BoolVar(&f.tls, "tls", false, "use TLS")
	flags.BoolVar(&f.skipVerify, "insecure", false, "skip TLS certificate verification")
	flags.StringVar(&f.caFile, "cacert", "", "CA certificate file for TLS")
	flags.StringVar(&f.clientCertFile, "cert", "", "client certificate file for mutual TLS")
	flags.StringVar(&f.clientKeyFile, "key", "", "client key file for mutual TLS")
}

func (f *targetFlags) target() domain.Target {
	return domain.Target{
		Address: f.address,
		TLS: domain.TLSSettings{
			Enabled:        f.tls || f.skipVerify || f.caFile != "" || f.clientCertFile != "",
			SkipVerify:     f.skipVerify,
			CertFile:       f.caFile,
			ClientCertFile: f.clientCertFile,
			ClientKeyFile:  f.clientKeyFile,
		},
	}
}

// connect dials the flagged target, or the most recent one when no address
// is given.
func (rc *rootCommand) connect(ctx context.Context, f *targetFlags) error {
	target := f.target()
	if target.Address == "" {
		recent, err := rc.app.Storage().GetRecentTargets()
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			return errNoTarget
		}
		target = recent[0]
	}
	return rc.app.Connect(ctx, target)
}

// resolveMethod accepts a full "<service>/<method>" key or a bare method
// name that is unique in the table.
func resolveMethod(table *binding.Table, name string) (string, error) {
	if _, ok := table.Get(name); ok {
		return name, nil
	}
	var matches []string
	for _, key := range table.Keys() {
		if strings.HasSuffix(key, "/"+name) {
			matches = append(matches, key)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", perrors.Wrapf(perrors.ErrUnknownMethod, name, "bound methods are %s", strings.Join(table.Keys(), ", "))
	default:
		return "", fmt.Errorf("method %q is ambiguous: %s", name, strings.Join(matches, ", "))
	}
}

// readBody expands "@file" and "@-" (stdin) body arguments.
func readBody(arg string, stdin io.Reader) (string, error) {
	if !strings.HasPrefix(arg, "@") {
		return arg, nil
	}
	var (
		data []byte
		err  error
	)
	if arg == "@-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(arg[1:])
	}
	if err != nil {
		return "", fmt.Errorf("read request body %s: %w", arg, err)
	}
	return string(data), nil
}

// parseMetadata turns "key: value" or "key=value" pairs into a map.
func parseMetadata(pairs []string) (map[string]string, error) {
	md := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, ":")
		if !ok {
			k, v, ok = strings.Cut(p, "=")
		}
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key:value", p)
		}
		md[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return md, nil
}

func (rc *rootCommand) callCmd() *cobra.Command {
	var (
		target   targetFlags
		stubFile string
		bodies   []string
		headers  []string
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "call <bundle> <method>",
		Short: "Call a bound method with JSON request bodies",
		Long: `Call a bound method. The method is a binding table key such as
"demo.Echo/Say" or a method name unique in the table. Each -d adds one request
body; client and bidirectional streams send them in order. "@file" reads a
body from a file and "@-" from stdin.`,
		Example: `  protobind call echo.yaml Say -a localhost:50051 -d '{"text":"hi"}'
  protobind call echo Collect -d '{"text":"a"}' -d '{"text":"b"}' -H 'x-user: me'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := rc.session(args[0], stubFile)
			if err != nil {
				return err
			}
			method, err := resolveMethod(sess.Table, args[1])
			if err != nil {
				return err
			}
			md, err := parseMetadata(headers)
			if err != nil {
				return err
			}
			req := domain.Request{Method: method, Metadata: md}
			for _, b := range bodies {
				body, err := readBody(b, rc.stdin)
				if err != nil {
					return err
				}
				req.Bodies = append(req.Bodies, body)
			}

			if err := rc.connect(cmd.Context(), &target); err != nil {
				return err
			}
			resp, err := rc.app.Call(cmd.Context(), sess, req)
			if err != nil {
				return err
			}

			if verbose {
				printMetadata(rc, "header", resp.Headers)
			}
			for _, body := range resp.Bodies {
				rc.printf("%s\n", body)
			}
			if verbose {
				printMetadata(rc, "trailer", resp.Trailers)
				fmt.Fprintf(rc.stderr, "took %s\n", resp.Duration)
			}
			return nil
		},
	}
	target.register(cmd.Flags())
	cmd.Flags().StringVar(&stubFile, "stub", "", "stub description file overriding the bundle's stub")
	cmd.Flags().StringArrayVarP(&bodies, "data", "d", nil, "JSON request body, repeatable")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `request metadata "key: value", repeatable`)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print response metadata and timing to stderr")
	return cmd
}

func printMetadata(rc *rootCommand, kind string, md map[string]string) {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(rc.stderr, "%s %s: %s\n", kind, k, md[k])
	}
}

func (rc *rootCommand) listCmd() *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the services a server exposes through reflection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rc.connect(cmd.Context(), &target); err != nil {
				return err
			}
			names, err := rc.app.ListServices(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				rc.printf("%s\n", name)
			}
			return nil
		},
	}
	target.register(cmd.Flags())
	return cmd
}

func (rc *rootCommand) fetchCmd() *cobra.Command {
	var (
		target targetFlags
		save   bool
		name   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "fetch <service>",
		Short: "Build a bundle for a service from a server's reflection service",
		Long: `Fetch the descriptor declaring a fully qualified service and the files it
imports from a server with reflection enabled. The bundle is printed as YAML,
written with -o, or stored with --save.`,
		Example: `  protobind fetch grpc.health.v1.Health -a localhost:50051 --save
  protobind fetch demo.Echo -o echo.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.connect(cmd.Context(), &target); err != nil {
				return err
			}
			bundle, err := rc.app.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if name != "" {
				bundle.Name = name
			}

			switch {
			case save:
				if err := rc.app.Storage().SaveBundle(*bundle); err != nil {
					return err
				}
				rc.printf("saved bundle %s\n", bundle.Name)
			case output != "":
				if err := storage.WriteBundleFile(output, *bundle); err != nil {
					return err
				}
				rc.printf("wrote %s\n", output)
			default:
				enc := yaml.NewEncoder(rc.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(bundle); err != nil {
					return err
				}
				return enc.Close()
			}
			return nil
		},
	}
	target.register(cmd.Flags())
	cmd.Flags().BoolVar(&save, "save", false, "store the bundle")
	cmd.Flags().StringVar(&name, "name", "", "bundle name (default: the service name)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the bundle to a .yaml or .json file")
	return cmd
}
