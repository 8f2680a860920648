package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livepoll-server/internal/auth"
	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/proto"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	hub         *core.Hub
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:         hub,
		authService: authService,
		log:         logger,
	}
}

// LoginRequest represents the teacher login request body.
type LoginRequest struct {
	Passcode string `json:"passcode" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TeacherLogin exchanges the teacher passcode for a token.
// POST /api/teacher/login
func (h *APIHandlers) TeacherLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(req.Passcode)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		case errors.Is(err, auth.ErrLoginDisabled):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "teacher login is not configured"})
		default:
			h.log.Error().Err(err).Msg("failed to issue teacher token")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Msg("teacher logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// History returns closed polls, oldest first.
// GET /api/history
func (h *APIHandlers) History(c *gin.Context) {
	records, err := h.hub.History(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, proto.HistoryEntries(records))
}

// Roster returns the registered students.
// GET /api/roster
func (h *APIHandlers) Roster(c *gin.Context) {
	students, err := h.hub.Roster(c.Request.Context())
	if err != nil {
		h.hubError(c, err)
		return
	}
	c.JSON(http.StatusOK, studentEntries(students))
}

// Status reports whether a poll is open and how many people are connected.
// GET /api/status
func (h *APIHandlers) Status(c *gin.Context) {
	st, err := h.hub.Status(c.Request.Context())
	if err != nil {
		h.hubError(c, err)
		return
	}

	resp := proto.StatusData{
		State:       st.State,
		Expected:    st.Expected,
		Answered:    st.Answered,
		Connections: st.Connections,
		Students:    st.Students,
	}
	if st.Question != nil {
		resp.Question = questionData(st.Question)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *APIHandlers) hubError(c *gin.Context, err error) {
	if errors.Is(err, core.ErrHubStopped) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "server is shutting down"})
		return
	}
	h.log.Error().Err(err).Msg("hub query failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
