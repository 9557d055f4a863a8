package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runappMethod string

var runappCmd = &cobra.Command{
	Use:   "runapp <site>[@path]",
	Short: "Run a request against a site",
	Long: `Run a request against a site. With site@path, one request is
dispatched and the result printed. Without a path, requests are read
interactively from stdin, one "METHOD /path" per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		site, path, oneShot := strings.Cut(args[0], "@")
		reg, _, err := buildHost()
		if err != nil {
			return err
		}
		dist, err := reg.Site(site)
		if err != nil {
			return err
		}

		dispatch := func(method, path string) {
			res, err := dist.Dispatch(path, method)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "error:", err)
				return
			}
			out, _ := json.Marshal(res.Value)
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", res.Module, res.RequestID, out)
		}

		if oneShot {
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			dispatch(runappMethod, path)
			return nil
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		fmt.Fprintf(cmd.OutOrStdout(), "site %s ready; enter \"METHOD /path\" lines\n", site)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			method, path, ok := strings.Cut(line, " ")
			if !ok {
				method, path = runappMethod, method
			}
			dispatch(strings.ToUpper(method), strings.TrimSpace(path))
		}
		return scanner.Err()
	},
}

func init() {
	runappCmd.Flags().StringVarP(&runappMethod, "method", "m", "GET", "HTTP method for one-shot requests")
	rootCmd.AddCommand(runappCmd)
}
