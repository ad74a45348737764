package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

const pagerdutyEventsV2URL = "https://events.pagerduty.com/v2/enqueue"

// pagerdutyPayload mirrors the Events API v2 trigger/resolve envelope.
// No PagerDuty Go SDK appears anywhere in the retrieval pack (see
// DESIGN.md), so this is built directly against the documented JSON
// contract, using the same net/http transport idiom as the webhook
// adapter.
type pagerdutyPayload struct {
	RoutingKey  string                 `json:"routing_key"`
	EventAction string                 `json:"event_action"` // "trigger" | "resolve"
	DedupKey    string                 `json:"dedup_key"`
	Payload     *pagerdutyTriggerInner `json:"payload,omitempty"`
	Client      string                 `json:"client,omitempty"`
	ClientURL   string                 `json:"client_url,omitempty"`
}

type pagerdutyTriggerInner struct {
	Summary   string `json:"summary"`
	Source    string `json:"source"`
	Severity  string `json:"severity"`
	Component string `json:"component,omitempty"`
	Class     string `json:"class,omitempty"`
}

// PagerDuty implements §4.5's pagerduty adapter: AlertTrigger on confirm,
// AlertResolve on recovery, both keyed by dedup_key = outage.uuid so
// trigger/resolve pairs collapse to at-most-one open PD incident per
// Outage (spec.md §8's "Alert dedup" law).
func PagerDuty(alerter *model.Alerter, check *model.Check, outage *model.Outage, lastEvent *model.Event, opened bool) error {
	key := alerter.Password // integration key, stored alongside url/username
	if key == "" {
		return fmt.Errorf("pagerduty alerter %s has no integration key", alerter.Name)
	}

	payload := pagerdutyPayload{
		RoutingKey: key,
		DedupKey:   outage.UUID,
		Client:     "defcon",
		ClientURL:  fmt.Sprintf("/outages/%s", outage.UUID),
	}

	if opened {
		severity := "critical"
		message := ""
		if lastEvent != nil {
			message = lastEvent.Message
			if lastEvent.Status == model.StatusWarning {
				severity = "warning"
			}
		}
		payload.EventAction = "trigger"
		payload.Payload = &pagerdutyTriggerInner{
			Summary:   fmt.Sprintf("%s: %s", check.Name, message),
			Source:    "defcon",
			Severity:  severity,
			Component: check.Name,
			Class:     string(check.Kind),
		}
	} else {
		payload.EventAction = "resolve"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, pagerdutyEventsV2URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call pagerduty events api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pagerduty events api returned status %d", resp.StatusCode)
	}
	return nil
}
