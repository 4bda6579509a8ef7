package notify

import (
	"context"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	api  messageCreator
	from string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from}
}

func (t *TwilioSender) Send(_ context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if msg != nil && msg.Sid != nil {
		return *msg.Sid, nil
	}
	return "", nil
}

// NewTwilioNotifier returns an SMS notifier backed by Twilio, or a disabled
// one when any credential is missing.
func NewTwilioNotifier(accountSID, authToken, from, platform string, log *zap.Logger) *SMSNotifier {
	if accountSID == "" || authToken == "" || from == "" {
		n := NewLogNotifier(platform, log)
		n.log.Info("sms notifications disabled, missing twilio credentials")
		return n
	}
	return NewSMSNotifier(NewTwilioSender(accountSID, authToken, from), platform, log)
}
