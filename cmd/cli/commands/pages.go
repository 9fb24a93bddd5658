package commands

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nsabot/updatescanner/cmd/cli/output"
	"github.com/spf13/cobra"
)

// treeNode is the API's JSON form of a page or folder
type treeNode struct {
	Type             string     `json:"type"`
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	URL              string     `json:"url,omitempty"`
	ScanRateMinutes  float64    `json:"scan_rate_minutes,omitempty"`
	LastAutoscanTime *time.Time `json:"last_autoscan_time,omitempty"`
	Selector         string     `json:"selector,omitempty"`
	State            string     `json:"state,omitempty"`
	Children         []treeNode `json:"children,omitempty"`
}

func newPagesCmd(opts *rootOptions) *cobra.Command {
	pagesCmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage monitored pages",
	}

	pagesCmd.AddCommand(
		newPagesListCmd(opts),
		newPagesAddCmd(opts),
		newPagesRemoveCmd(opts),
	)
	return pagesCmd
}

func newPagesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the page tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var root treeNode
			if err := opts.client().do(http.MethodGet, "/api/v1/pages", nil, &root); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), root)
			}

			var rows [][]interface{}
			appendTreeRows(&rows, root.Children, 0)
			output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Title", "URL", "Every (min)", "State", "Last scan"}, rows)
			return nil
		},
	}
}

// appendTreeRows adds one row per node, indenting titles by depth
func appendTreeRows(rows *[][]interface{}, nodes []treeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		if n.Type == "folder" {
			*rows = append(*rows, []interface{}{n.ID, indent + n.Title + "/", "", "", "", ""})
			appendTreeRows(rows, n.Children, depth+1)
			continue
		}

		lastScan := "never"
		if n.LastAutoscanTime != nil {
			lastScan = n.LastAutoscanTime.Local().Format("2006-01-02 15:04")
		}
		*rows = append(*rows, []interface{}{n.ID, indent + n.Title, n.URL, n.ScanRateMinutes, n.State, lastScan})
	}
}

func newPagesAddCmd(opts *rootOptions) *cobra.Command {
	var (
		parentID string
		title    string
		rate     float64
		selector string
		folder   bool
	)

	cmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Add a page, or a folder with --folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]interface{}{
				"parent_id": parentID,
				"title":     title,
			}
			if folder {
				if title == "" {
					return fmt.Errorf("--title is required for folders")
				}
				req["type"] = "folder"
			} else {
				if len(args) != 1 {
					return fmt.Errorf("a URL is required")
				}
				req["type"] = "page"
				req["url"] = args[0]
				req["scan_rate_minutes"] = rate
				req["selector"] = selector
			}

			var created treeNode
			if err := opts.client().do(http.MethodPost, "/api/v1/pages", req, &created); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", created.Type, created.ID, created.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "0", "ID of the parent folder")
	cmd.Flags().StringVar(&title, "title", "", "title (defaults to the URL for pages)")
	cmd.Flags().Float64Var(&rate, "every", 0, "minutes between automatic scans (default one day)")
	cmd.Flags().StringVar(&selector, "selector", "", "JSONPath selecting the part of a JSON page to compare")
	cmd.Flags().BoolVar(&folder, "folder", false, "create a folder instead of a page")

	return cmd
}

func newPagesRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]...",
		Aliases: []string{"delete"},
		Short:   "Delete pages or empty folders",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			for _, id := range args {
				if err := c.do(http.MethodDelete, "/api/v1/pages/"+id, nil, nil); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}
