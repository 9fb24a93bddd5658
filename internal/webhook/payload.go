package webhook

import (
	"fmt"
	"strings"

	"github.com/nsabot/updatescanner/internal/model"
)

// ChangePayload is the JSON body posted for a change notification
type ChangePayload struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	Pages    []model.ChangedPage    `json:"pages"`
}

// maxTitlesInText caps how many page titles are spelled out in the message text
const maxTitlesInText = 5

// FormatChangePayload builds the notification for the pages that changed in one scan batch
func FormatChangePayload(batchID string, trigger model.ScanTrigger, pages []model.ChangedPage) ChangePayload {
	titles := make([]string, 0, maxTitlesInText)
	for i, p := range pages {
		if i == maxTitlesInText {
			titles = append(titles, fmt.Sprintf("and %d more", len(pages)-maxTitlesInText))
			break
		}
		title := p.Title
		if title == "" {
			title = p.URL
		}
		titles = append(titles, title)
	}

	noun := "pages have"
	if len(pages) == 1 {
		noun = "page has"
	}

	return ChangePayload{
		Text: fmt.Sprintf("%d %s changed: %s", len(pages), noun, strings.Join(titles, ", ")),
		Metadata: map[string]interface{}{
			"service":   "updatescanner",
			"batch_id":  batchID,
			"trigger":   string(trigger),
			"timestamp": "", // set by the dispatcher
		},
		Pages: pages,
	}
}
