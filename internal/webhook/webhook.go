package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rngallery/rngallery/internal/database"
	"github.com/rngallery/rngallery/internal/upload"
)

const maxResponseBodyBytes = 1024

var _ upload.Notifier = (*Notifier)(nil)

// Event is the JSON body posted to the receiver.
type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Client posts signed events, retrying failed attempts, and logs every
// attempt to webhook_deliveries.
type Client struct {
	db          database.DBTX
	http        *http.Client
	retryDelays []time.Duration
}

func New(db database.DBTX) *Client {
	return &Client{
		db:          db,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{1 * time.Second, 4 * time.Second},
	}
}

// SignPayload computes HMAC-SHA256 of the payload using the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatch sends an event with up to 1+len(retryDelays) attempts.
func (c *Client) Dispatch(ctx context.Context, uploadID, webhookURL, secret string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	signature := SignPayload(secret, body)
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		statusCode, respBody, err := c.doPost(ctx, webhookURL, body, signature)
		c.logDelivery(ctx, uploadID, event.Name, body, statusCode, respBody, attempt)

		if err == nil && statusCode != nil && *statusCode >= 200 && *statusCode < 300 {
			return nil
		}

		if err != nil {
			lastErr = err
		} else if statusCode != nil {
			lastErr = fmt.Errorf("webhook returned status %d", *statusCode)
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

func (c *Client) doPost(ctx context.Context, url string, body []byte, signature string) (*int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err.Error(), err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1))
	respBody := string(respBytes)
	if len(respBody) > maxResponseBodyBytes {
		respBody = respBody[:maxResponseBodyBytes]
	}

	return &resp.StatusCode, respBody, nil
}

func (c *Client) logDelivery(ctx context.Context, uploadID, event string, payload []byte, statusCode *int, responseBody string, attempt int) {
	if _, err := c.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (upload_id, event, payload, status_code, response_body, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uploadID, event, payload, statusCode, responseBody, attempt,
	); err != nil {
		slog.Error("webhook: failed to log delivery", "upload_id", uploadID, "error", err)
	}
}

// Notifier sends upload events to one configured receiver.
type Notifier struct {
	client *Client
	url    string
	secret string
}

func NewNotifier(client *Client, webhookURL, secret string) *Notifier {
	return &Notifier{client: client, url: webhookURL, secret: secret}
}

func (n *Notifier) UploadFinished(ctx context.Context, e upload.Event) error {
	data := map[string]any{
		"uploadId":  e.ID.String(),
		"fileName":  e.FileName,
		"mediaKind": e.MediaKind.String(),
		"phase":     e.Phase.String(),
	}
	if e.Key != "" {
		data["gifKey"] = e.Key
	}
	if e.Nickname != "" {
		data["nickname"] = e.Nickname
	}
	if e.Error != "" {
		data["error"] = e.Error
	}
	event := Event{Name: e.Name(), Timestamp: e.FinishedAt.UTC(), Data: data}
	if err := n.client.Dispatch(ctx, e.ID.String(), n.url, n.secret, event); err != nil {
		return fmt.Errorf("dispatch %s: %w", event.Name, err)
	}
	return nil
}
