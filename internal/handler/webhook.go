package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/mustafamuse/irshad-center-sub005/internal/dto"
	"github.com/mustafamuse/irshad-center-sub005/internal/model"
	"github.com/mustafamuse/irshad-center-sub005/internal/service"
)

// Stripe webhook payloads are small; the cap protects against abuse on an
// unauthenticated endpoint.
const maxWebhookBodySize = 64 * 1024

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

func (h *WebhookHandler) DugsiWebhook(c echo.Context) error {
	return h.handle(c, model.ProgramDugsi)
}

func (h *WebhookHandler) MahadWebhook(c echo.Context) error {
	return h.handle(c, model.ProgramMahad)
}

func (h *WebhookHandler) handle(c echo.Context, program model.Program) error {
	ctx := c.Request().Context()

	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBodySize)
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	result, err := h.webhookService.HandleWebhook(ctx, program, signature, body)
	if err != nil {
		return h.respondError(c, program, err)
	}

	return c.JSON(http.StatusOK, &dto.WebhookAck{
		Received: true,
		Skipped:  result.Skipped,
		Warning:  result.Warning,
	})
}

// respondError maps the closed set of failure kinds onto status codes. The
// status code is the whole contract: any non-2xx makes Stripe retry the
// delivery later.
func (h *WebhookHandler) respondError(c echo.Context, program model.Program, err error) error {
	switch {
	case errors.Is(err, service.ErrMissingSignature),
		errors.Is(err, service.ErrEmptyBody),
		errors.Is(err, service.ErrMalformedPayload):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidSignature):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": service.ErrInvalidSignature.Error()})

	default:
		log.Error().Err(err).Str("program", string(program)).Msg("webhook processing failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *WebhookHandler) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	source := model.Program(c.QueryParam("source"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	events, err := h.webhookService.ListEvents(ctx, source, limit)
	if err != nil {
		return err
	}

	records := make([]*dto.WebhookEventRecord, len(events))
	for i, ev := range events {
		records[i] = &dto.WebhookEventRecord{
			EventID:   ev.EventID,
			EventType: ev.EventType,
			Source:    string(ev.Source),
			Payload:   json.RawMessage(ev.Payload),
			CreatedAt: ev.CreatedAt,
		}
	}

	return c.JSON(http.StatusOK, records)
}
