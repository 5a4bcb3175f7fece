package alerts

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/settings"
)

// Sender is the part of a shoutrrr router used by ShoutrrrSink.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrSink sends alerts through shoutrrr service URLs such as smtp://
// or twilio://. It only sends while email or SMS alerts are enabled in the
// runtime settings.
type ShoutrrrSink struct {
	sender Sender
}

// NewShoutrrrSink builds a sink from service URLs.
func NewShoutrrrSink(urls []string, timeout time.Duration) (*ShoutrrrSink, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("no shoutrrr URLs configured").
			Component("alerts").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create shoutrrr sender: %w", err)).
			Component("alerts").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrSink{sender: sender}, nil
}

// NewShoutrrrSinkWithSender wraps an existing sender.
func NewShoutrrrSinkWithSender(sender Sender) *ShoutrrrSink {
	return &ShoutrrrSink{sender: sender}
}

// Name implements Sink.
func (s *ShoutrrrSink) Name() string { return "shoutrrr" }

// Enabled reports whether email or SMS alerts are switched on. Recipients
// are part of the configured service URLs, e.g. smtp://...?toaddresses=
// or twilio://.../+358..., so alert_email_address and alert_phone_number
// are informational.
func (s *ShoutrrrSink) Enabled(cfg settings.Config) bool {
	return cfg.AlertEmailEnabled || cfg.AlertSMSEnabled
}

// Send delivers the alert unless both email and SMS alerts are disabled.
func (s *ShoutrrrSink) Send(ctx context.Context, alert Alert) error {
	if !s.Enabled(alert.Config) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	params.SetTitle(alert.Title())

	errs := s.sender.Send(FormatMessage(alert), &params)
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return errors.New(errors.Join(failed...)).
			Component("alerts").
			Category(errors.CategoryNotification).
			Context("failures", len(failed)).
			Build()
	}
	return nil
}

// FormatMessage renders the plain text alert body.
func FormatMessage(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fall detected with confidence %.0f%%", alert.Event.Confidence*100)
	if loc := alert.Location(); loc != "" {
		fmt.Fprintf(&b, " at %s", loc)
	}
	fmt.Fprintf(&b, ".\nTime: %s", alert.Event.Timestamp.UTC().Format(time.RFC3339))
	if alert.Config.ContactPerson != "" {
		fmt.Fprintf(&b, "\nContact: %s", alert.Config.ContactPerson)
	}
	if alert.Config.EmergencyContact != "" {
		fmt.Fprintf(&b, "\nEmergency contact: %s", alert.Config.EmergencyContact)
	}
	return b.String()
}
