package app

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/stkwatch/cmd/stkwatch/app/options"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/internal/stkagent/exposure"
	"github.com/autopeer-io/stkwatch/pkg/log"
)

func newCheckCommand() *cobra.Command {
	opts := options.NewCheckOptions()
	cmd := &cobra.Command{
		Use:   "check --vin VIN [--api-key KEY]",
		Short: "Look one vehicle up once and print its fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}
			log.Init(opts.Log)
			defer log.Sync()
			return runCheck(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	addNamedFlags(cmd, opts.Flags())
	return cmd
}

func runCheck(ctx context.Context, opts *options.CheckOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	q, err := opts.Query()
	if err != nil {
		return err
	}

	c, err := opts.Config().NewCoordinator(q)
	if err != nil {
		return err
	}
	defer c.Close()

	res := c.Refresh(ctx)

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("FIELD", "VALUE", "UNIT")
	for _, s := range exposure.States(res) {
		table.AddRow(s.Name, exposure.Format(s.Value), s.Unit)
	}
	fmt.Fprintln(out, table)

	if res.Err == nil {
		return nil
	}

	if e, ok := core.FindKind(res.Err, core.KindMissingCredential); ok {
		attrs := uitable.New()
		attrs.AddRow("")
		attrs.AddRow(exposure.AttrMessage+":", e.Message)
		attrs.AddRow(exposure.AttrRegistrationURL+":", e.RegistrationURL)
		attrs.AddRow(exposure.AttrDocumentationURL+":", e.DocumentationURL)
		fmt.Fprintln(out, attrs)
	}
	return fmt.Errorf("lookup of %s failed: %w", q, res.Err)
}

func newFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the sensor fields published for every vehicle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printFields(cmd.OutOrStdout())
			return nil
		},
	}
}

func printFields(out io.Writer) {
	table := uitable.New()
	table.AddRow("KEY", "NAME", "KIND", "UNIT", "DEFAULT")
	for _, f := range core.Catalog() {
		enabled := "no"
		if f.EnabledByDefault {
			enabled = "yes"
		}
		table.AddRow(f.Key, f.Name, f.Kind, f.Unit, enabled)
	}
	fmt.Fprintln(out, table)
}

func addNamedFlags(cmd *cobra.Command, fss cliflag.NamedFlagSets) {
	fs := cmd.Flags()
	names := make([]string, 0, len(fss.FlagSets))
	for name := range fss.FlagSets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fs.AddFlagSet(fss.FlagSets[name])
	}
	cliflag.SetUsageAndHelpFunc(cmd, fss, 0)
}
