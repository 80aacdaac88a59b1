package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gift-platform/internal/apperr"
	"gift-platform/internal/gateway"
	"gift-platform/internal/logger"
	"gift-platform/internal/models"
	"gift-platform/internal/reconcile"
	"gift-platform/internal/settlement"
)

const webhookSecretHeader = "X-Webhook-Secret"

// Field aliases accepted from the notification forwarders.
var (
	refFields      = []string{"merchant_ref", "order_id", "ref"}
	amountFields   = []string{"amount", "value", "gross_amount"}
	channelFields  = []string{"payment_method", "channel"}
	rawTextFields  = []string{"raw_text", "text", "message"}
	receivedFields = []string{"received_at", "timestamp"}
)

type WebhookHandler struct {
	Settlement *settlement.Service
	Gateway    gateway.Gateway
	Log        *logger.Logger
}

func NewWebhookHandler(svc *settlement.Service, gw gateway.Gateway, log *logger.Logger) *WebhookHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WebhookHandler{Settlement: svc, Gateway: gw, Log: log}
}

// HandlePaymentSignal accepts a forwarded payment notification, as JSON or
// form fields, and settles the gift it pays for.
func (h *WebhookHandler) HandlePaymentSignal(c *gin.Context) {
	reconciler := h.Settlement.Reconciler()
	secret := c.GetHeader(webhookSecretHeader)
	if secret != "" {
		if err := reconciler.Authenticate(secret); err != nil {
			respondError(c, h.Log, err)
			return
		}
	}

	fields, err := readFields(c)
	if err != nil {
		// Without a header the secret may only be in the body; an unreadable
		// body then cannot authenticate.
		if authErr := reconciler.Authenticate(secret); authErr != nil {
			respondError(c, h.Log, authErr)
			return
		}
		h.Log.Infow("unreadable payment signal", "error", err)
		badRequest(c, "Invalid notification body")
		return
	}

	if secret == "" {
		secret = fields["secret"]
	}
	sig := reconcile.Signal{
		Ref:        first(fields, refFields),
		Amount:     first(fields, amountFields),
		Channel:    first(fields, channelFields),
		RawText:    first(fields, rawTextFields),
		ReceivedAt: first(fields, receivedFields),
		Secret:     secret,
	}

	res, err := h.Settlement.HandleSignal(c.Request.Context(), sig)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"ref":       res.Gift.Ref,
		"duplicate": res.Duplicate,
		"effect":    res.Effect,
	})
}

type midtransNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	TransactionStatus string `json:"transaction_status"`
}

// HandleMidtransNotification never trusts the notification body: the status
// is re-read from the Core API before the gift moves.
func (h *WebhookHandler) HandleMidtransNotification(c *gin.Context) {
	var notification midtransNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		badRequest(c, "Invalid notification format")
		return
	}
	ctx := c.Request.Context()
	ctrl := h.Settlement.Controller()

	status, err := h.Gateway.CheckStatus(ctx, notification.OrderID)
	if errors.Is(err, gateway.ErrTransactionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Transaction not found", "code": "TRANSACTION_NOT_FOUND"})
		return
	}
	if err != nil {
		respondError(c, h.Log, apperr.Wrap(settlement.ErrGatewayFailed, err, "could not verify transaction"))
		return
	}

	g, err := ctrl.Gift(ctx, status.OrderID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if status.GrossAmount != g.Amount {
		h.Log.Warnw("gateway amount mismatch", "ref", g.Ref, "gift_amount", g.Amount, "gross_amount", status.GrossAmount)
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Amount mismatch", "code": "AMOUNT_MISMATCH"})
		return
	}

	switch status.Outcome() {
	case gateway.OutcomePaid:
		res, err := ctrl.Settle(ctx, g.Ref, settlement.Outcome{GatewayTxID: status.TransactionID, Method: settlement.MethodGateway})
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "ref": g.Ref, "status": res.Gift.Status, "duplicate": res.Duplicate})
	case gateway.OutcomeFailed, gateway.OutcomeCancelled:
		target := models.GiftCancelled
		if status.Outcome() == gateway.OutcomeFailed {
			target = models.GiftFailed
		}
		closed, err := ctrl.Close(ctx, g.Ref, target)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "ref": g.Ref, "status": closed.Status})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "ref": g.Ref, "status": g.Status})
	}
}

// readFields flattens a JSON object or form body into strings. JSON numbers
// keep their literal text.
func readFields(c *gin.Context) (map[string]string, error) {
	fields := make(map[string]string)
	if strings.Contains(c.ContentType(), "json") {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		var body map[string]any
		if err := dec.Decode(&body); err != nil {
			return nil, err
		}
		for k, v := range body {
			switch val := v.(type) {
			case nil:
			case string:
				fields[k] = val
			case json.Number:
				fields[k] = val.String()
			case bool:
				fields[k] = fmt.Sprint(val)
			default:
				// Nested objects are not part of any forwarder format.
			}
		}
		return fields, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

func first(fields map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(fields[k]); v != "" {
			return v
		}
	}
	return ""
}
