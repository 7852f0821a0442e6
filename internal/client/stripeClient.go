package client

import (
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/mustafamuse/irshad-center-sub005/internal/config"
	"github.com/mustafamuse/irshad-center-sub005/internal/model"
)

// StripeClient verifies inbound webhook authenticity. It is constructed once
// in main and injected into the service; there is no package-level SDK state.
type StripeClient interface {
	// VerifyWebhookSignature checks the Stripe-Signature header against the
	// exact raw request bytes. It must run before the body is parsed for any
	// application use.
	VerifyWebhookSignature(program model.Program, signatureHeader string, body []byte) error
}

type stripeClientImpl struct {
	webhookSecrets map[model.Program]string
}

func NewStripeClient(cfg *config.Stripe) StripeClient {
	return &stripeClientImpl{
		webhookSecrets: map[model.Program]string{
			model.ProgramDugsi: cfg.DugsiWebhookSecret,
			model.ProgramMahad: cfg.MahadWebhookSecret,
		},
	}
}

func (c *stripeClientImpl) VerifyWebhookSignature(program model.Program, signatureHeader string, body []byte) error {
	secret := c.webhookSecrets[program]
	if secret == "" {
		return fmt.Errorf("no webhook secret configured for program %q", program)
	}

	return webhook.ValidatePayload(body, signatureHeader, secret)
}
