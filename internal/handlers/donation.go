package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gift-platform/internal/logger"
	"gift-platform/internal/settlement"
)

type DonationHandler struct {
	Intake *settlement.Intake
	Log    *logger.Logger
}

func NewDonationHandler(intake *settlement.Intake, log *logger.Logger) *DonationHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DonationHandler{Intake: intake, Log: log}
}

type CreateDonationRequest struct {
	Amount       int64  `json:"amount" binding:"required"`
	DonorName    string `json:"donor_name"`
	Message      string `json:"message"`
	MediaURL     string `json:"media_url"`
	MediaSeconds int    `json:"media_seconds"`
}

func (h *DonationHandler) CreateDonation(c *gin.Context) {
	var req CreateDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	out, err := h.Intake.Create(c.Request.Context(), settlement.GiftRequest{
		CreatorHandle:  c.Param("username"),
		Amount:         req.Amount,
		DonorName:      req.DonorName,
		Message:        req.Message,
		MediaURL:       req.MediaURL,
		MediaSeconds:   req.MediaSeconds,
		RequestPayment: true,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	resp := gin.H{
		"message": "Gift created.",
		"ref":     out.Gift.Ref,
		"amount":  out.Gift.Amount,
		"status":  out.Gift.Status,
	}
	if out.Payment != nil {
		resp["redirect_url"] = out.Payment.RedirectURL
		resp["token"] = out.Payment.Token
	}
	c.JSON(http.StatusCreated, resp)
}
