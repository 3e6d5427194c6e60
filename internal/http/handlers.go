package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"meterbot/internal/bot"
	"meterbot/internal/core"
	"meterbot/internal/log"
)

const (
	maxBodyBytes   = 4 << 10
	maxTextLength  = 256
	maxUserIDBytes = 64
)

type messageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type lineItemDTO struct {
	Category    string `json:"category"`
	Previous    string `json:"previous"`
	Current     string `json:"current"`
	Consumption string `json:"consumption"`
	Unit        string `json:"unit"`
	Rate        string `json:"rate"`
	Cost        string `json:"cost"`
	Baseline    bool   `json:"baseline,omitempty"`
}

type calculationDTO struct {
	Period    string        `json:"period"`
	Label     string        `json:"label"`
	CreatedAt time.Time     `json:"created_at"`
	Total     string        `json:"total"`
	Currency  string        `json:"currency"`
	Items     []lineItemDTO `json:"items"`
}

func toCalculationDTO(c core.Calculation) calculationDTO {
	dto := calculationDTO{
		Period:    c.Period.String(),
		Label:     c.Period.Label(),
		CreatedAt: c.CreatedAt,
		Total:     c.Total.StringFixed(2),
		Currency:  core.Currency,
		Items:     make([]lineItemDTO, 0, len(c.Items)),
	}
	for _, it := range c.Items {
		dto.Items = append(dto.Items, lineItemDTO{
			Category:    string(it.Category),
			Previous:    it.Previous.String(),
			Current:     it.Current.String(),
			Consumption: it.Consumption.String(),
			Unit:        it.Category.Unit(),
			Rate:        it.Rate.String(),
			Cost:        it.Cost.StringFixed(2),
			Baseline:    it.Baseline,
		})
	}
	return dto
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ready(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, err.Error()).Write(w)
		return
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleKeyboard(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{"keyboard": bot.Keyboard()}).Write(w)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		BadRequestError("invalid JSON body").Write(w)
		return
	}

	user, err := parseUserID(req.UserID)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if len([]rune(req.Text)) > maxTextLength {
		BadRequestError(fmt.Sprintf("text longer than %d characters", maxTextLength)).Write(w)
		return
	}

	if !s.userLimiter.Allow(string(user)) {
		log.FromContext(ctx).WarnContext(ctx, "User rate limited", log.FieldUser, string(user))
		TooManyRequestsError().Write(w)
		return
	}

	reply, err := s.svc.HandleMessage(ctx, user, req.Text)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Message handling failed",
			log.FieldUser, string(user), log.FieldError, err)
		InternalServerError("message handling failed").Write(w)
		return
	}
	NewResponse().JSON(reply).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	entries := s.svc.History(r.Context(), user)
	out := make([]calculationDTO, 0, len(entries))
	for _, c := range entries {
		out = append(out, toCalculationDTO(c))
	}
	NewResponse().JSON(map[string]any{"user_id": user, "history": out}).Write(w)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	data, err := s.svc.Statement(ctx, user)
	if errors.Is(err, core.ErrEmptyHistory) {
		NotFoundError("no confirmed calculations").Write(w)
		return
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Statement export failed",
			log.FieldUser, string(user), log.FieldError, err)
		InternalServerError("statement export failed").Write(w)
		return
	}

	NewResponse().
		Attachment("statement-"+string(user)+".xlsx",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data).
		Write(w)
}

// parseUserID accepts printable ids without path or quote characters
func parseUserID(raw string) (core.UserID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", errors.New("user_id is required")
	}
	if len(id) > maxUserIDBytes {
		return "", fmt.Errorf("user_id longer than %d bytes", maxUserIDBytes)
	}
	if strings.ContainsFunc(id, func(r rune) bool {
		return r < 0x20 || r == 0x7f || r == '"' || r == '/' || r == '\\'
	}) {
		return "", errors.New("user_id contains invalid characters")
	}
	return core.UserID(id), nil
}
