package twilio

import (
	"context"
	"net/http"
	"time"

	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	twilio "github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client sends SMS through the Twilio REST API.
type Client struct {
	api        messageCreator
	httpClient *http.Client
}

const defaultTimeout = 10 * time.Second

// NewClient authenticates with the account id and auth token of contact.
// timeout bounds every request to the Twilio API; non-positive means 10s.
func NewClient(contact types.Contact, timeout time.Duration) (*Client, error) {
	if contact.AccountID == "" || contact.AuthToken == "" {
		return nil, errors.New("twilio account id and auth token are required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: timeout,
	}
	base := &client.Client{
		Credentials: client.NewCredentials(contact.AccountID, contact.AuthToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(contact.AccountID)

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Client: base})
	return &Client{api: rest.Api, httpClient: httpClient}, nil
}

func (c *Client) Name() string { return "twilio" }

// Send texts contact.To from contact.From and returns the message SID.
func (c *Client) Send(ctx context.Context, contact types.Contact, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(contact.From)
	params.SetTo(contact.To)
	params.SetBody(text)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return "", errors.Wrapf(err, "could not send sms to %s", contact.To)
	}
	if resp == nil {
		return "", nil
	}
	return lo.FromPtr(resp.Sid), nil
}
