package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var domainsQuery string

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List domain bindings, or query which binding a host resolves to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := buildHost()
		if err != nil {
			return err
		}

		if domainsQuery != "" {
			b, err := reg.Bind(domainsQuery)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", domainsQuery, b.Host)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "HOST\tALIASES\tPATH\tSITE")
		for _, b := range reg.Bindings() {
			aliases := ""
			if len(b.Aliases) > 0 {
				aliases = fmt.Sprint(b.Aliases)
			}
			for path, site := range b.Sites {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Host, aliases, path, site)
			}
		}
		w.Flush()
		return nil
	},
}

func init() {
	domainsCmd.Flags().StringVarP(&domainsQuery, "query", "q", "", "Resolve a host against the binding table")
	rootCmd.AddCommand(domainsCmd)
}
