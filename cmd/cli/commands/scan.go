package commands

import (
	"fmt"
	"net/http"

	"github.com/nsabot/updatescanner/cmd/cli/output"
	"github.com/spf13/cobra"
)

type scanRecord struct {
	PageID     string `json:"page_id"`
	PageTitle  string `json:"page_title"`
	State      string `json:"state"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	ScannedAt  string `json:"scanned_at"`
}

type scanResponse struct {
	BatchID string       `json:"batch_id"`
	Records []scanRecord `json:"records"`
	Error   string       `json:"error,omitempty"`
	JobID   string       `json:"job_id,omitempty"`
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "scan [page-id]...",
		Short: "Scan pages now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]interface{}{
				"page_ids": args,
				"async":    async,
			}

			var resp scanResponse
			if err := opts.client().do(http.MethodPost, "/api/v1/scans", req, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, resp)
			}
			if async {
				fmt.Fprintf(out, "Scan queued as job %s\n", resp.JobID)
				return nil
			}

			rows := make([][]interface{}, 0, len(resp.Records))
			for _, r := range resp.Records {
				rows = append(rows, []interface{}{r.PageID, r.PageTitle, r.State, r.StatusCode, r.DurationMs})
			}
			output.RenderTable(out, []string{"ID", "Title", "State", "HTTP", "ms"}, rows)

			if resp.Error != "" {
				return fmt.Errorf("some pages could not be scanned: %s", resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "queue the scan and return immediately")
	return cmd
}
