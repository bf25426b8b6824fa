package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const webhookCallTimeout = 5 * time.Second

// WebhookInfo is the subset of getWebhookInfo this bot cares about.
type WebhookInfo struct {
	URL                  string `json:"url"`
	PendingUpdateCount   int    `json:"pending_update_count"`
	LastErrorMessage     string `json:"last_error_message"`
	LastErrorDate        int64  `json:"last_error_date"`
	MaxConnections       int    `json:"max_connections"`
	IPAddress            string `json:"ip_address"`
	HasCustomCertificate bool   `json:"has_custom_certificate"`
}

// deleteWebhook removes a previously registered webhook so long polling can
// receive updates.
func deleteWebhook(token string, dropPending bool) error {
	form := url.Values{"drop_pending_updates": {fmt.Sprintf("%t", dropPending)}}
	_, err := callAPI(token, "deleteWebhook", form)
	return err
}

// setWebhook registers the public URL with Telegram before the webhook
// listener starts.
func setWebhook(token, publicURL string, dropPending bool) error {
	if strings.TrimSpace(publicURL) == "" {
		return fmt.Errorf("empty webhook url")
	}
	form := url.Values{
		"url":                  {publicURL},
		"drop_pending_updates": {fmt.Sprintf("%t", dropPending)},
	}
	_, err := callAPI(token, "setWebhook", form)
	return err
}

// getWebhookInfo fetches the current webhook registration state.
func getWebhookInfo(token string) (*WebhookInfo, error) {
	raw, err := callAPI(token, "getWebhookInfo", nil)
	if err != nil {
		return nil, err
	}
	var info WebhookInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("getWebhookInfo decode: %w", err)
	}
	return &info, nil
}

func callAPI(token, method string, form url.Values) (json.RawMessage, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("empty token")
	}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/%s", token, method)

	ctx, cancel := context.WithTimeout(context.Background(), webhookCallTimeout)
	defer cancel()

	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s status: %s", method, resp.Status)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%s decode: %w", method, err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("%s rejected: %s", method, envelope.Description)
	}
	return envelope.Result, nil
}
