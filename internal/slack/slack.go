package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rngallery/rngallery/internal/upload"
)

var _ upload.Notifier = (*Client)(nil)

// Client posts upload notifications to one Slack incoming webhook.
type Client struct {
	webhookURL string
	http       *http.Client
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type payload struct {
	Blocks []block `json:"blocks"`
}

func (c *Client) postMessage(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	return nil
}

func uploadPayload(e upload.Event) payload {
	var headline string
	if e.Phase == upload.PhaseComplete {
		headline = fmt.Sprintf(":white_check_mark: *Upload ready*\n`%s` is now `%s`", e.FileName, e.Key)
	} else {
		headline = fmt.Sprintf(":x: *Upload failed*\n`%s`: %s", e.FileName, e.Error)
	}

	details := []string{e.MediaKind.String()}
	if e.Nickname != "" {
		details = append(details, "by @"+e.Nickname)
	}

	return payload{
		Blocks: []block{
			{
				Type: "section",
				Text: &text{Type: "mrkdwn", Text: headline},
			},
			{
				Type:     "context",
				Elements: []text{{Type: "mrkdwn", Text: strings.Join(details, " · ")}},
			},
		},
	}
}

func (c *Client) UploadFinished(ctx context.Context, e upload.Event) error {
	if err := c.postMessage(ctx, uploadPayload(e)); err != nil {
		log.Printf("slack: failed to send upload notification: %v", err)
		return err
	}
	return nil
}
