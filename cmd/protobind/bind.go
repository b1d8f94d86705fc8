package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/shhac/protobind/internal/app"
	"github.com/shhac/protobind/internal/binding"
	"github.com/shhac/protobind/internal/storage"
	"github.com/spf13/cobra"
)

// bindingRow is one table entry as printed by "bind --json".
type bindingRow struct {
	Method          string `json:"method"`
	Path            string `json:"path"`
	Type            string `json:"type"`
	RequestMessage  string `json:"request_message"`
	RequestShape    string `json:"request_shape"`
	ResponseMessage string `json:"response_message"`
	ResponseShape   string `json:"response_shape"`
}

func rowsOf(table *binding.Table) []bindingRow {
	rows := make([]bindingRow, 0, table.Len())
	table.Range(func(key string, b binding.Binding) bool {
		rows = append(rows, bindingRow{
			Method:          key,
			Path:            b.Path(),
			Type:            string(b.Type),
			RequestMessage:  b.Request.MessageName(),
			RequestShape:    b.Request.Shape().String(),
			ResponseMessage: b.Response.MessageName(),
			ResponseShape:   b.Response.Shape().String(),
		})
		return true
	})
	return rows
}

// session loads and binds a bundle reference, replacing its stub with the
// one in stubFile when given.
func (rc *rootCommand) session(ref, stubFile string) (*app.Session, error) {
	bundle, err := rc.app.LoadBundle(ref)
	if err != nil {
		return nil, err
	}
	if stubFile != "" {
		st, err := storage.LoadStubFile(stubFile)
		if err != nil {
			return nil, err
		}
		bundle.Stub = st
	}
	return rc.app.Bind(*bundle)
}

func (rc *rootCommand) bindCmd() *cobra.Command {
	var (
		stubFile string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "bind <bundle>",
		Short: "Resolve a bundle, bind its stub and print the binding table",
		Example: `  protobind bind echo.yaml
  protobind bind echo --stub echo-stub.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := rc.session(args[0], stubFile)
			if err != nil {
				return err
			}
			rows := rowsOf(sess.Table)

			if asJSON {
				enc := json.NewEncoder(rc.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			rc.printf("stub %s bound to %d method(s)\n", sess.Stub.Name, len(rows))
			tw := tabwriter.NewWriter(rc.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METHOD\tTYPE\tREQUEST\tRESPONSE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s (%s)\t%s (%s)\n",
					r.Method, r.Type, r.RequestMessage, r.RequestShape, r.ResponseMessage, r.ResponseShape)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&stubFile, "stub", "", "stub description file overriding the bundle's stub")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the table as JSON")
	return cmd
}

func (rc *rootCommand) servicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services <bundle>",
		Short: "List the services and methods a bundle's root descriptor declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			bundle, err := rc.app.LoadBundle(args[0])
			if err != nil {
				return err
			}
			schema, err := rc.app.Resolve(*bundle)
			if err != nil {
				return err
			}

			if missing := schema.Missing(); len(missing) > 0 {
				fmt.Fprintf(rc.stderr, "warning: unresolved imports %v\n", missing)
			}

			tw := tabwriter.NewWriter(rc.stdout, 0, 4, 2, ' ', 0)
			for _, svc := range app.ServicesOf(schema) {
				fmt.Fprintf(tw, "%s\n", svc.FullName)
				for _, m := range svc.Methods {
					fmt.Fprintf(tw, "  %s\t%s\t%s -> %s\n", m.Name, m.MethodType(), m.InputType, m.OutputType)
				}
			}
			return tw.Flush()
		},
	}
}

func (rc *rootCommand) describeCmd() *cobra.Command {
	var stubFile string
	cmd := &cobra.Command{
		Use:   "describe <bundle> [symbol]",
		Short: "Print a bundle's root descriptor, or one of its elements, as proto source",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := rc.session(args[0], stubFile)
			if err != nil {
				return err
			}
			symbol := ""
			if len(args) == 2 {
				symbol = args[1]
			}
			src, err := rc.app.Describe(sess, symbol)
			if err != nil {
				return err
			}
			rc.printf("%s", src)
			return nil
		},
	}
	cmd.Flags().StringVar(&stubFile, "stub", "", "stub description file overriding the bundle's stub")
	return cmd
}
