package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newConfigsCommand(app *App, root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configs",
		Short: "Manage archive configurations",
	}
	cmd.AddCommand(newConfigsListCommand(app, root))
	return cmd
}

func newConfigsListCommand(app *App, root *rootOptions) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's archive configurations",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			usr, err := resolveUser(cmd.Context(), app, root.User)
			if err != nil {
				return err
			}
			cfgs, err := app.Configs.ListByUser(cmd.Context(), usr.ID, activeOnly)
			if err != nil {
				return err
			}
			if len(cfgs) == 0 {
				fmt.Fprintln(app.out(), "No configurations found.")
				return nil
			}

			tw := tabwriter.NewWriter(app.out(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPURPOSE\tSOURCE\tDESTINATION\tTIMEZONE\tACTIVE")
			for _, cfg := range cfgs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
					cfg.Name, cfg.ArchivePurpose, cfg.SourceURI, cfg.DestinationURI,
					cfg.Timezone, cfg.IsActive)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "list only active configurations")
	return cmd
}
