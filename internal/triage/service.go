package triage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"medical-triage-agent/internal/agent"
)

// WearableClient is the smartwatch integration boundary. The stub
// implementation returns a fixed synthetic reading set.
type WearableClient interface {
	Fetch(ctx context.Context) VitalSigns
}

// ReportService delivers the sealed record to the physician.
type ReportService interface {
	SendPhysicianReport(ctx context.Context, rec *IntakeRecord) error
}

// ChatResult is what one conversational turn returns to the caller.
// Record is populated only when the turn sealed the session.
type ChatResult struct {
	Status     Status
	BotMessage string
	Record     *IntakeRecord
}

// ClosedSessionMessage is returned on turns against an already-final
// session, without calling the model again.
const ClosedSessionMessage = "Este atendimento já foi encerrado. A ficha completa está disponível para o médico."

type Service interface {
	StartSession(ctx context.Context, info PersonalInfo) (*IntakeRecord, error)
	CollectVitals(ctx context.Context, sessionID string) (*IntakeRecord, error)
	ProcessComplaint(ctx context.Context, sessionID, complaint string) (*IntakeRecord, error)
	Chat(ctx context.Context, sessionID, userMessage string) (*ChatResult, error)
	GetRecord(ctx context.Context, sessionID string) (*IntakeRecord, error)
}

// service is the conversation engine: the only caller of the model and
// the only writer of Status, Specialty, GuidanceNote and History.
type service struct {
	store     Store
	model     agent.Client
	wearable  WearableClient
	reportSvc ReportService

	// one mutex per session; requests against the same session are
	// serialized for the whole turn, model call included.
	locks sync.Map
}

// NewService wires the engine. model may be nil (no API key configured);
// triage operations then fail with agent.ErrUnavailable. reportSvc may be
// nil to disable physician delivery.
func NewService(store Store, model agent.Client, wearable WearableClient, reportSvc ReportService) Service {
	return &service{
		store:     store,
		model:     model,
		wearable:  wearable,
		reportSvc: reportSvc,
	}
}

func (s *service) lockSession(sessionID string) func() {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *service) StartSession(ctx context.Context, info PersonalInfo) (*IntakeRecord, error) {
	now := time.Now()
	rec := &IntakeRecord{
		ID:           uuid.New(),
		PersonalInfo: info,
		History:      []Turn{},
		Status:       StatusOngoing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	log.Info().Str("session_id", rec.ID.String()).Str("patient", info.FullName).Msg("atendimento iniciado")
	return rec, nil
}

func (s *service) CollectVitals(ctx context.Context, sessionID string) (*IntakeRecord, error) {
	defer s.lockSession(sessionID)()

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Repeated calls just re-assert the same constants.
	vitals := s.wearable.Fetch(ctx)
	rec.VitalSigns = &vitals
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ProcessComplaint is the single-shot mode: one model call, the validated
// result seals the record with no intermediate ongoing turn.
func (s *service) ProcessComplaint(ctx context.Context, sessionID, complaint string) (*IntakeRecord, error) {
	defer s.lockSession(sessionID)()

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.Final() {
		return rec, nil
	}
	if s.model == nil {
		return nil, agent.ErrUnavailable
	}

	prompt := agent.BuildTriagePrompt(rec.PatientSummary(), complaint)
	raw, err := s.model.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("session_id", sessionID).Str("raw", raw).Msg("resposta bruta do modelo")

	result, err := agent.ParseTriageResult(raw)
	if err != nil {
		return nil, err
	}

	rec.Complaint = complaint
	s.seal(rec, result.Specialty, result.GuidanceNote)
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.dispatchReport(rec)
	return rec, nil
}

// Chat advances the conversational state machine by one turn.
func (s *service) Chat(ctx context.Context, sessionID, userMessage string) (*ChatResult, error) {
	defer s.lockSession(sessionID)()

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.Final() {
		// Idempotent no-op: the outcome is already sealed and the model
		// is not consulted again.
		return &ChatResult{Status: StatusFinal, BotMessage: ClosedSessionMessage, Record: rec}, nil
	}
	if s.model == nil {
		return nil, agent.ErrUnavailable
	}

	rec.History = append(rec.History, Turn{Role: RoleUser, Text: userMessage, Timestamp: time.Now()})

	raw, err := s.model.GenerateChat(ctx, s.chatMessages(rec))
	if err != nil {
		s.rollbackTurn(rec)
		return nil, err
	}
	log.Debug().Str("session_id", sessionID).Str("raw", raw).Msg("resposta bruta do modelo")

	turn, err := agent.ParseChatTurn(raw)
	if err != nil {
		s.rollbackTurn(rec)
		return nil, err
	}

	rec.History = append(rec.History, Turn{Role: RoleModel, Text: turn.BotMessage, Timestamp: time.Now()})

	if turn.Status == string(StatusFinal) {
		rec.Complaint = rec.UserTranscript()
		s.seal(rec, turn.Specialty, turn.GuidanceNote)
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	result := &ChatResult{Status: rec.Status, BotMessage: turn.BotMessage}
	if rec.Final() {
		result.Record = rec
		s.dispatchReport(rec)
	}
	return result, nil
}

func (s *service) GetRecord(ctx context.Context, sessionID string) (*IntakeRecord, error) {
	return s.store.Get(ctx, sessionID)
}

// chatMessages rebuilds the full model input: the instruction as a
// synthetic first model turn, then the stored history in order. The
// newest user utterance is already appended to the history.
func (s *service) chatMessages(rec *IntakeRecord) []agent.Message {
	msgs := make([]agent.Message, 0, len(rec.History)+1)
	msgs = append(msgs, agent.Message{
		Role: agent.RoleModel,
		Text: agent.BuildChatInstruction(rec.PatientSummary()),
	})
	for _, t := range rec.History {
		msgs = append(msgs, agent.Message{Role: string(t.Role), Text: t.Text})
	}
	return msgs
}

// rollbackTurn undoes the user-turn append of a failed turn so a retry
// does not duplicate the utterance. Nothing was saved, so only the
// in-place record needs fixing.
func (s *service) rollbackTurn(rec *IntakeRecord) {
	if n := len(rec.History); n > 0 && rec.History[n-1].Role == RoleUser {
		rec.History = rec.History[:n-1]
	}
}

// seal performs the single ongoing -> final transition.
func (s *service) seal(rec *IntakeRecord, specialty, guidance string) {
	rec.Specialty = specialty
	rec.GuidanceNote = guidance
	rec.Status = StatusFinal
	log.Info().
		Str("session_id", rec.ID.String()).
		Str("especialidade", specialty).
		Msg("triagem concluída")
}

// dispatchReport sends the physician report in the background; delivery
// failure never fails the patient-facing request.
func (s *service) dispatchReport(rec *IntakeRecord) {
	if s.reportSvc == nil {
		return
	}
	go func(snapshot IntakeRecord) {
		if err := s.reportSvc.SendPhysicianReport(context.Background(), &snapshot); err != nil {
			log.Error().Err(err).Str("session_id", snapshot.ID.String()).Msg("falha ao enviar relatório ao médico")
		}
	}(*rec)
}
