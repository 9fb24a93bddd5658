package commands

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/nsabot/updatescanner/cmd/cli/output"
	"github.com/spf13/cobra"
)

type historyResponse struct {
	Total   int64        `json:"total"`
	Results []scanRecord `json:"results"`
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		pageID string
		state  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if pageID != "" {
				q.Set("page_id", pageID)
			}
			if state != "" {
				q.Set("state", state)
			}
			q.Set("limit", strconv.Itoa(limit))

			var resp historyResponse
			if err := opts.client().do(http.MethodGet, "/api/v1/history?"+q.Encode(), nil, &resp); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			rows := make([][]interface{}, 0, len(resp.Results))
			for _, r := range resp.Results {
				rows = append(rows, []interface{}{r.ScannedAt, r.PageID, r.PageTitle, r.State, r.StatusCode})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"Scanned", "ID", "Title", "State", "HTTP"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&pageID, "page", "", "only scans of this page")
	cmd.Flags().StringVar(&state, "state", "", "only scans with this state (no_change, changed, error)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of scans to show")
	return cmd
}
