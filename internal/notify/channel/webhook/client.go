package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/notify"
)

// Client posts rendered messages to an outbound notification gateway
// (email/SMS provider or an internal relay).
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type reqBody struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	JobID   string `json:"job_id"`
	Kind    string `json:"audience"`
}

func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/messages"

	b, err := json.Marshal(reqBody{
		Channel: "email",
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
		JobID:   msg.JobID,
		Kind:    string(msg.Audience),
	})
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("notification gateway rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("notification gateway http %d", resp.StatusCode)
	}
	return nil
}
