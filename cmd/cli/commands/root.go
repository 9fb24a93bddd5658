// Package commands implements the updatescanner command line client.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	apiURL string
	json   bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "updatescanner",
		Short:         "Update Scanner CLI",
		Long:          "Command line interface for the Update Scanner API: manage monitored pages, run scans and read scan history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", apiURLFromEnv(), "API base URL (env UPDATESCANNER_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON instead of tables")

	rootCmd.AddCommand(
		newPagesCmd(opts),
		newScanCmd(opts),
		newHistoryCmd(opts),
	)

	return rootCmd
}

func (o *rootOptions) client() *client {
	return newClient(o.apiURL)
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
