package alert

import (
	"fmt"

	"github.com/jonsson/defcon/internal/model"
	"github.com/slack-go/slack"
)

const (
	slackColorOK       = "#00b894"
	slackColorCritical = "#e17055"
	slackColorWarning  = "#e67e22"
	slackColorUnknown  = "#95a5a6"
)

// Slack posts a formatted attachment to the alerter's Slack incoming
// webhook URL, grounded on the original's slack-hook usage: color and
// title depend on direction (down/recovered) and the last event's status.
func Slack(alerter *model.Alerter, check *model.Check, outage *model.Outage, lastEvent *model.Event, opened bool) error {
	if alerter.URL == "" {
		return fmt.Errorf("slack alerter %s has no url", alerter.Name)
	}

	color := slackColorUnknown
	message := "no recent event recorded"
	if lastEvent != nil {
		message = lastEvent.Message
		switch lastEvent.Status {
		case model.StatusOK:
			color = slackColorOK
		case model.StatusCritical:
			color = slackColorCritical
		case model.StatusWarning:
			color = slackColorWarning
		}
	}

	title := fmt.Sprintf("%s: outage started", check.Name)
	text := fmt.Sprintf("An uptime check for the following service failed.\n```%s```", message)
	if !opened {
		color = slackColorOK
		title = fmt.Sprintf("%s: outage recovered", check.Name)
		text = "Everything seems to be back to normal."
	}

	attachment := slack.Attachment{
		Title: title,
		Text:  text,
		Color: color,
		Fields: []slack.AttachmentField{
			{Title: "Check name", Value: check.Name, Short: true},
			{Title: "Check kind", Value: string(check.Kind), Short: true},
			{Title: "Outage", Value: outage.UUID, Short: true},
		},
	}

	msg := &slack.WebhookMessage{
		Username:    "defcon",
		IconEmoji:   ":mag:",
		Attachments: []slack.Attachment{attachment},
	}

	if err := slack.PostWebhook(alerter.URL, msg); err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	return nil
}
