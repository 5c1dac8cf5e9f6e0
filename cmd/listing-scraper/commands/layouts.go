package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maltedev/listing-scraper/internal/app"
)

func newLayoutsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "layouts [--file <layouts.toml>]",
		Short: "Lists the registered site layouts and their output columns.",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := app.LoadLayouts(file)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SITE\tCOLUMNS")
			for _, name := range reg.Names() {
				l, err := reg.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(l.Header(), ", "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&file, "file", os.Getenv("LAYOUTS_FILE"), "TOML file with additional layouts")
	return cmd
}
