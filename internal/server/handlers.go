package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/precog/internal/decision"
	"github.com/mbd888/precog/internal/logging"
)

// LoginRequest is the body of both login endpoints.
type LoginRequest struct {
	User      *decision.User        `json:"user" binding:"required"`
	Context   *decision.AuthContext `json:"context" binding:"required"`
	Overrides *decision.Overrides   `json:"overrides,omitempty"`
}

// AutoDecisionResponse is the body of POST /v1/login/auto-decision.
type AutoDecisionResponse struct {
	Allowed             bool   `json:"allowed"`
	Error               string `json:"error,omitempty"`
	ConfirmedFraudulent bool   `json:"confirmedFraudulent,omitempty"`
}

func bindLogin(c *gin.Context) (*LoginRequest, bool) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return nil, false
	}
	return &req, true
}

func (s *Server) decisionHandler(c *gin.Context) {
	req, ok := bindLogin(c)
	if !ok {
		return
	}

	resp, err := s.Client().Decision(c.Request.Context(), req.User, req.Context, decision.WithOverrides(req.Overrides))
	if err != nil {
		if errors.Is(err, decision.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			return
		}
		logging.L(c.Request.Context()).Error("decision failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) autoDecisionHandler(c *gin.Context) {
	req, ok := bindLogin(c)
	if !ok {
		return
	}

	err := s.Client().AutoDecision(c.Request.Context(), req.User, req.Context, decision.WithOverrides(req.Overrides))
	if err == nil {
		c.JSON(http.StatusOK, AutoDecisionResponse{Allowed: true})
		return
	}

	var rej *decision.RejectionError
	if errors.As(err, &rej) {
		c.JSON(http.StatusForbidden, AutoDecisionResponse{
			Allowed:             false,
			Error:               "fraudulent_login",
			ConfirmedFraudulent: rej.ConfirmedFraudulent,
		})
		return
	}

	// AutoDecision only ever returns rejections; anything else is allowed.
	logging.L(c.Request.Context()).Error("unexpected auto-decision error, allowing login", "error", err)
	c.JSON(http.StatusOK, AutoDecisionResponse{Allowed: true})
}

func (s *Server) authTypesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authTypes": decision.AuthenticationTypes()})
}
