// Inbound messaging webhook handler.
//
// This file exposes the endpoint the messaging transport (Twilio WhatsApp)
// posts customer messages to:
//   - POST /whatsapp  (application/x-www-form-urlencoded)
//
// The handler is transport-thin: it validates the form fields, runs exactly
// one dialogue turn, records the delivery for dedupe, and serializes the
// reply into a TwiML envelope. Dialogue outcomes are always 200 responses;
// a non-2xx here would make the transport retry and replay the turn.
package handlers

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/swaadx/go-order-backend/internal/dialogue"
	"github.com/swaadx/go-order-backend/internal/http/middleware"
)

// DialogueEngine runs one dialogue turn for an inbound customer message.
//
// Implementations must be safe for concurrent use; per-sender serialization
// is the engine's responsibility, not the transport's.
type DialogueEngine interface {
	// HandleMessage processes one message from sender `from` to the
	// restaurant number `to` and returns the reply for this turn.
	HandleMessage(ctx context.Context, from, to, body string) dialogue.Result
}

// DeliveryRecorder persists a processed webhook delivery so retried
// deliveries of the same MessageSid can replay the recorded reply.
//
// Recording is best effort: a failure here must not fail the turn, since the
// reply has already been produced and the cart already mutated.
type DeliveryRecorder func(ctx context.Context, messageSid, restaurantID, phone, reply string) error

// WebhookHandler serves the inbound messaging webhook.
type WebhookHandler struct {
	Engine DialogueEngine
	Record DeliveryRecorder // optional
}

// NewWebhook constructs a WebhookHandler bound to the given engine and
// delivery recorder. Record may be nil when dedupe persistence is disabled.
func NewWebhook(engine DialogueEngine, record DeliveryRecorder) *WebhookHandler {
	return &WebhookHandler{Engine: engine, Record: record}
}

// twimlResponse is the TwiML envelope for a single outbound message.
// encoding/xml handles escaping of reply text (item names come from the
// restaurant's menu and may contain markup characters).
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// writeTwiML serializes reply into a TwiML envelope with an XML declaration
// and writes it with a 200 status.
func writeTwiML(c *gin.Context, reply string) {
	body, err := xml.Marshal(twimlResponse{Message: reply})
	if err != nil {
		// Marshal of a flat struct cannot realistically fail; keep the
		// transport contract (200 + TwiML) even so.
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("twiml marshal failed")
		body = []byte("<Response></Response>")
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", append([]byte(xml.Header), body...))
}

// Receive godoc
// @ID          receiveWebhook
// @Summary     Inbound WhatsApp message webhook
// @Description Receives one customer message from the messaging transport, runs a dialogue turn, and answers with a TwiML reply. Retried deliveries (same MessageSid) replay the recorded reply without re-running the turn.
// @Tags        Webhook
// @Accept      x-www-form-urlencoded
// @Produce     xml
//
// @Param       From        formData  string  true   "Sender identity"        example(whatsapp:+15550001111)
// @Param       To          formData  string  true   "Restaurant number"      example(whatsapp:+14155238886)
// @Param       Body        formData  string  false  "Message text"           example(1-2)
// @Param       MessageSid  formData  string  false  "Transport message id"   example(SM9b2f8c0d1e)
//
// @Success     200  {string}  string  "TwiML reply"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or invalid form fields"
// @Router      /whatsapp [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	// Replayed delivery: the dedupe middleware found a recorded reply for
	// this MessageSid. Serve it without running a turn.
	if reply, replayed := middleware.ReplayReply(c); replayed {
		middleware.CountWebhookReplay()
		writeTwiML(c, reply)
		return
	}

	from := strings.TrimSpace(c.PostForm("From"))
	to := strings.TrimSpace(c.PostForm("To"))
	body := c.PostForm("Body")
	if from == "" || to == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "From and To form fields are required")
		return
	}

	res := h.Engine.HandleMessage(c.Request.Context(), from, to, body)

	// Record the delivery so a transport retry replays this reply. Only
	// deliveries that resolved to a restaurant are recorded; unknown
	// destinations are stateless and safe to re-answer.
	if sid, okSid := middleware.GetMessageSid(c); okSid && res.RestaurantID != "" && h.Record != nil {
		if err := h.Record(c.Request.Context(), sid, res.RestaurantID, from, res.Reply); err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("message_sid", sid).Msg("delivery record failed")
		}
	}

	writeTwiML(c, res.Reply)
}
