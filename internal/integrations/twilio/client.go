package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Twilio error codes surfaced to users with a readable message instead of the
// raw provider response.
const (
	codeAddressRequired   = 21631
	codeBundleRequired    = 21649
	codeNumberUnavailable = 21422
	codeResourceNotFound  = 20404
)

// AvailableNumber is one purchasable phone number from a search.
type AvailableNumber struct {
	PhoneNumber         string `json:"phone_number"`
	FriendlyName        string `json:"friendly_name"`
	Locality            string `json:"locality,omitempty"`
	Region              string `json:"region,omitempty"`
	IsoCountry          string `json:"iso_country"`
	AddressRequirements string `json:"address_requirements"`
}

// ProvisionedNumber is the result of purchasing a number.
type ProvisionedNumber struct {
	SID         string `json:"sid"`
	PhoneNumber string `json:"phone_number"`
}

// Client wraps the Twilio REST SDK for number search and provisioning.
type Client struct {
	api       *twilio.RestClient
	validator twclient.RequestValidator
	logger    *zap.Logger
}

func NewClient(accountSID, authToken string, logger *zap.Logger) *Client {
	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{
		api:       api,
		validator: twclient.NewRequestValidator(authToken),
		logger:    logger,
	}
}

// ValidateSignature checks the X-Twilio-Signature header on inbound webhooks.
func (c *Client) ValidateSignature(url string, params map[string]string, signature string) bool {
	return c.validator.Validate(url, params, signature)
}

// SearchNumbers lists voice-capable local numbers available for purchase in a
// country, optionally narrowed to an area code.
func (c *Client) SearchNumbers(ctx context.Context, country string, areaCode int, limit int) ([]AvailableNumber, error) {
	if limit <= 0 || limit > 30 {
		limit = 10
	}

	params := &openapi.ListAvailablePhoneNumberLocalParams{}
	params.SetVoiceEnabled(true)
	params.SetLimit(limit)
	if areaCode > 0 {
		params.SetAreaCode(areaCode)
	}

	resp, err := c.api.Api.ListAvailablePhoneNumberLocal(country, params)
	if err != nil {
		return nil, c.mapError(err, "number search failed")
	}

	numbers := make([]AvailableNumber, 0, len(resp))
	for _, n := range resp {
		numbers = append(numbers, AvailableNumber{
			PhoneNumber:         strVal(n.PhoneNumber),
			FriendlyName:        strVal(n.FriendlyName),
			Locality:            strVal(n.Locality),
			Region:              strVal(n.Region),
			IsoCountry:          strVal(n.IsoCountry),
			AddressRequirements: strVal(n.AddressRequirements),
		})
	}
	return numbers, nil
}

// ProvisionNumber purchases a phone number and points its voice webhook at
// voiceURL. Regulatory failures come back as ErrInvalidInput with a message
// the dashboard can show verbatim.
func (c *Client) ProvisionNumber(ctx context.Context, phoneNumber, friendlyName, voiceURL string) (*ProvisionedNumber, error) {
	params := &openapi.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(phoneNumber)
	params.SetFriendlyName(friendlyName)
	params.SetVoiceUrl(voiceURL)
	params.SetVoiceMethod("POST")

	resp, err := c.api.Api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return nil, c.mapError(err, "number purchase failed")
	}

	return &ProvisionedNumber{
		SID:         strVal(resp.Sid),
		PhoneNumber: strVal(resp.PhoneNumber),
	}, nil
}

// ReleaseNumber returns a purchased number to the provider. Used when an
// agent is deleted.
func (c *Client) ReleaseNumber(ctx context.Context, sid string) error {
	err := c.api.Api.DeleteIncomingPhoneNumber(sid, &openapi.DeleteIncomingPhoneNumberParams{})
	if err != nil {
		return c.mapError(err, "number release failed")
	}
	return nil
}

func (c *Client) mapError(err error, action string) error {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		c.logger.Warn("telephony provider error",
			zap.Int("code", restErr.Code),
			zap.Int("status", restErr.Status),
			zap.String("message", restErr.Message),
		)

		// Releasing an already-released number must read as not-found so
		// teardown retries can complete.
		if restErr.Status == http.StatusNotFound || restErr.Code == codeResourceNotFound {
			return fmt.Errorf("%w: %s", xerrors.ErrNotFound, restErr.Message)
		}

		switch restErr.Code {
		case codeAddressRequired:
			return fmt.Errorf("%w: this number requires a verified address in its country before purchase", xerrors.ErrInvalidInput)
		case codeBundleRequired:
			return fmt.Errorf("%w: this number requires an approved regulatory bundle before purchase", xerrors.ErrInvalidInput)
		case codeNumberUnavailable:
			return fmt.Errorf("%w: this number is no longer available", xerrors.ErrConflict)
		}
		return fmt.Errorf("%w: %s: %s", xerrors.ErrUpstream, action, restErr.Message)
	}

	return fmt.Errorf("%w: %s: %v", xerrors.ErrUpstream, action, err)
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
