package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/agrisarthi/agrivoice/pkg/errorsx"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// Dialer creates outbound calls via the Twilio REST API.
type Dialer struct {
	cfg    Config
	client callCreator
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults()}
}

// Dial places an outbound call that will hit callbackURL for TwiML.
func (d *Dialer) Dial(ctx context.Context, to, from, callbackURL string) (string, error) {
	_ = ctx
	if to == "" || from == "" {
		return "", errorsx.Wrap(errors.New("to/from required"), errorsx.ReasonDialRequest)
	}
	if callbackURL == "" {
		return "", errorsx.Wrap(errors.New("callback url required"), errorsx.ReasonDialRequest)
	}
	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		return "", errorsx.Wrap(errors.New("missing twilio credentials"), errorsx.ReasonDialRequest)
	}
	client := d.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(callbackURL)
	resp, err := client.CreateCall(params)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonDialRequest)
	}
	if resp == nil || resp.Sid == nil {
		return "", errorsx.Wrap(fmt.Errorf("missing call sid"), errorsx.ReasonDialRequest)
	}
	return *resp.Sid, nil
}
