package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	routesShowRegex bool
	routesShowAPI   bool
)

var routesCmd = &cobra.Command{
	Use:   "routes <site>",
	Short: "List a site's compiled routes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := buildHost()
		if err != nil {
			return err
		}
		dist, err := reg.Site(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODULE\tMETHODS\tPATTERN\tHANDLER")
		for _, info := range dist.Routes() {
			pattern := info.Pattern
			if routesShowRegex && info.Regex != "" {
				pattern = info.Regex
			}
			handler := info.Ref
			if info.Target != "" {
				handler = info.Target + " -> " + info.Ref
			}
			if info.Script {
				fmt.Fprintf(w, "%s\t(script)\t%s\t%s\n", info.Module, pattern, handler)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Module, info.Methods, pattern, handler)
		}
		w.Flush()

		if routesShowAPI {
			fmt.Fprintln(cmd.OutOrStdout())
			aw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(aw, "MODULE\tSTATUS\tAPI\tCOMMANDS")
			for _, info := range dist.LoadedModulesInfo() {
				fmt.Fprintf(aw, "%s\t%s\t%s\t%v\n", info.Code, info.Status, info.APIName, info.Commands)
			}
			aw.Flush()
		}
		return nil
	},
}

func init() {
	routesCmd.Flags().BoolVar(&routesShowRegex, "regex", false, "Show compiled regular expressions instead of patterns")
	routesCmd.Flags().BoolVar(&routesShowAPI, "api", false, "Also list modules and their API commands")
	rootCmd.AddCommand(routesCmd)
}
