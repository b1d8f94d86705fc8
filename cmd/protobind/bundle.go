package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shhac/protobind/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (rc *rootCommand) bundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Manage stored bundles",
	}
	cmd.AddCommand(
		rc.bundleSaveCmd(),
		rc.bundleListCmd(),
		rc.bundleShowCmd(),
		rc.bundleDeleteCmd(),
	)
	return cmd
}

func (rc *rootCommand) bundleSaveCmd() *cobra.Command {
	var (
		name     string
		stubFile string
		check    bool
	)
	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Store a bundle file under the storage directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			bundle, err := storage.LoadBundleFile(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				bundle.Name = name
			}
			if stubFile != "" {
				if bundle.Stub, err = storage.LoadStubFile(stubFile); err != nil {
					return err
				}
			}
			if check {
				if _, err := rc.app.Bind(*bundle); err != nil {
					return err
				}
			}
			bundle.SavedAt = time.Now()
			if err := rc.app.Storage().SaveBundle(*bundle); err != nil {
				return err
			}
			rc.printf("saved bundle %s\n", bundle.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "bundle name (default: the file's name)")
	cmd.Flags().StringVar(&stubFile, "stub", "", "stub description file to store with the bundle")
	cmd.Flags().BoolVar(&check, "check", true, "refuse bundles that do not bind")
	return cmd
}

func (rc *rootCommand) bundleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored bundles",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			names, err := rc.app.Storage().ListBundles()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(rc.stdout, 0, 4, 2, ' ', 0)
			for _, name := range names {
				b, err := rc.app.Storage().LoadBundle(name)
				if err != nil {
					fmt.Fprintf(tw, "%s\t(unreadable: %v)\n", name, err)
					continue
				}
				stubName := "-"
				if b.Stub != nil {
					stubName = b.Stub.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%d deps\t%s\n", name, stubName, len(b.Dependencies), b.Source)
			}
			return tw.Flush()
		},
	}
}

func (rc *rootCommand) bundleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored bundle as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := rc.app.Storage().LoadBundle(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(rc.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(b); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func (rc *rootCommand) bundleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>...",
		Aliases: []string{"rm"},
		Short:   "Delete stored bundles",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, name := range args {
				if err := rc.app.Storage().DeleteBundle(name); err != nil {
					return err
				}
				rc.printf("deleted bundle %s\n", name)
			}
			return nil
		},
	}
}

func (rc *rootCommand) targetsCmd() *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List recently used server targets",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if clearAll {
				if err := rc.app.Storage().ClearRecentTargets(); err != nil {
					return err
				}
				rc.printf("cleared recent targets\n")
				return nil
			}
			recent, err := rc.app.Storage().GetRecentTargets()
			if err != nil {
				return err
			}
			for _, t := range recent {
				mode := "plaintext"
				if t.TLS.Enabled {
					mode = "tls"
				}
				rc.printf("%s\t%s\n", t.Address, mode)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "forget all recent targets")
	return cmd
}
