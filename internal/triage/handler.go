package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"medical-triage-agent/internal/agent"
)

// RecordRenderer turns a sealed record into a downloadable document.
type RecordRenderer interface {
	Render(rec *IntakeRecord) ([]byte, error)
}

type Handler struct {
	svc      Service
	renderer RecordRenderer
	validate *validator.Validate
}

// NewHandler builds the HTTP handler. renderer may be nil; the PDF
// endpoint then answers 503.
func NewHandler(svc Service, renderer RecordRenderer) *Handler {
	return &Handler{
		svc:      svc,
		renderer: renderer,
		validate: validator.New(),
	}
}

type startSessionRequest struct {
	FullName string `json:"nome_completo" validate:"required"`
	Address  string `json:"endereco" validate:"required"`
	Age      int    `json:"idade" validate:"required,gte=0,lte=130"`
}

type complaintRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Complaint string `json:"queixa" validate:"required"`
}

type chatRequest struct {
	SessionID   string `json:"session_id" validate:"required,uuid4"`
	UserMessage string `json:"user_message" validate:"required"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !h.bind(w, r, &req) {
		return
	}

	rec, err := h.svc.StartSession(r.Context(), PersonalInfo{
		FullName: req.FullName,
		Address:  req.Address,
		Age:      req.Age,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Atendimento iniciado com sucesso.",
		"session_id": rec.ID.String(),
	})
}

func (h *Handler) FetchSmartwatchData(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	rec, err := h.svc.CollectVitals(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Dados do smartwatch obtidos com sucesso.",
		"dados_fisiologicos": rec.VitalSigns,
	})
}

func (h *Handler) ProcessComplaint(w http.ResponseWriter, r *http.Request) {
	var req complaintRequest
	if !h.bind(w, r, &req) {
		return
	}

	rec, err := h.svc.ProcessComplaint(r.Context(), req.SessionID, req.Complaint)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":              fmt.Sprintf("Ficha de atendimento completa para session_id: %s.", rec.ID),
		"ficha_de_atendimento": rec,
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.bind(w, r, &req) {
		return
	}

	result, err := h.svc.Chat(r.Context(), req.SessionID, req.UserMessage)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body := map[string]any{
		"status":      result.Status,
		"bot_message": result.BotMessage,
	}
	if result.Record != nil {
		body["ficha_de_atendimento"] = result.Record
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) FetchRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecord(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ficha_de_atendimento": rec})
}

func (h *Handler) FetchRecordPDF(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Geração de PDF não está configurada.")
		return
	}

	rec, err := h.svc.GetRecord(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !rec.Final() {
		writeDetail(w, http.StatusConflict, "A triagem ainda não foi concluída para esta sessão.")
		return
	}

	pdf, err := h.renderer.Render(rec)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ficha_%s.pdf", rec.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// bind decodes and validates the request body, answering 400 itself on
// failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "Corpo da requisição inválido: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "Requisição inválida: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeDetail(w, http.StatusNotFound, "Sessão não encontrada.")
	case errors.Is(err, agent.ErrUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, "O serviço de IA não está disponível no momento.")
	case errors.Is(err, agent.ErrMalformedResponse), errors.Is(err, agent.ErrSchemaMismatch):
		log.Error().Err(err).Msg("resposta inválida do modelo")
		writeDetail(w, http.StatusInternalServerError, "Erro ao processar a resposta do modelo: "+err.Error())
	default:
		log.Error().Err(err).Msg("falha ao processar requisição")
		writeDetail(w, http.StatusInternalServerError, "Erro interno: "+err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// RegisterRoutes mounts the triage API on r.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/iniciar_atendimento", h.StartSession)
	r.Get("/obter_dados_smartwatch/{session_id}", h.FetchSmartwatchData)
	r.Post("/processar_queixa", h.ProcessComplaint)
	r.Post("/chat_with_gemini", h.Chat)
	r.Get("/ficha_completa/{session_id}", h.FetchRecord)
	r.Get("/ficha_completa/{session_id}/pdf", h.FetchRecordPDF)
}
