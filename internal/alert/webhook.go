package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

type webhookPayload struct {
	Level   string       `json:"level,omitempty"`
	Check   *model.Check `json:"check"`
	Outage  *model.Outage `json:"outage"`
}

// Webhook POSTs a JSON envelope {level, check, outage} to alerter.URL,
// optionally with HTTP Basic auth, per §4.5's webhook adapter contract.
func Webhook(alerter *model.Alerter, check *model.Check, outage *model.Outage, lastEvent *model.Event, opened bool) error {
	if alerter.URL == "" {
		return fmt.Errorf("webhook alerter %s has no url", alerter.Name)
	}

	payload := webhookPayload{Check: check, Outage: outage}
	if lastEvent != nil {
		payload.Level = lastEvent.Status.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, alerter.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if alerter.Username != "" {
		req.SetBasicAuth(alerter.Username, alerter.Password)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call alerter webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alerter webhook returned status %d", resp.StatusCode)
	}
	return nil
}
