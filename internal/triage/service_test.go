package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-triage-agent/internal/agent"
)

// scriptedModel plays back canned responses in order and counts calls.
type scriptedModel struct {
	responses []string
	err       error
	calls     int
	lastChat  []agent.Message
}

func (m *scriptedModel) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return m.next()
}

func (m *scriptedModel) GenerateChat(ctx context.Context, history []agent.Message) (string, error) {
	m.lastChat = history
	return m.next()
}

func (m *scriptedModel) next() (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

type stubWearable struct{}

func (stubWearable) Fetch(ctx context.Context) VitalSigns {
	return VitalSigns{
		HeightCM:          175,
		WeightKG:          70,
		SystolicPressure:  120,
		DiastolicPressure: 80,
		BloodOxygenPct:    98,
		StressLevel:       "Baixo",
	}
}

type capturingReport struct {
	sent chan *IntakeRecord
}

func (r *capturingReport) SendPhysicianReport(ctx context.Context, rec *IntakeRecord) error {
	r.sent <- rec
	return nil
}

func newTestService(model agent.Client) (Service, Store) {
	store := NewMemoryStore()
	return NewService(store, model, stubWearable{}, nil), store
}

func startTestSession(t *testing.T, svc Service) string {
	t.Helper()
	rec, err := svc.StartSession(context.Background(), PersonalInfo{FullName: "Ana", Address: "Rua X", Age: 30})
	require.NoError(t, err)
	return rec.ID.String()
}

func TestStartSessionInitialState(t *testing.T) {
	svc, _ := newTestService(nil)

	rec, err := svc.StartSession(context.Background(), PersonalInfo{FullName: "Ana", Address: "Rua X", Age: 30})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusOngoing, rec.Status)
	assert.Nil(t, rec.VitalSigns)
	assert.Empty(t, rec.Complaint)
	assert.Empty(t, rec.History)
	assert.Empty(t, rec.Specialty)
	assert.Empty(t, rec.GuidanceNote)
}

func TestCollectVitalsWritesFixedReadings(t *testing.T) {
	svc, _ := newTestService(nil)
	id := startTestSession(t, svc)

	rec, err := svc.CollectVitals(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec.VitalSigns)
	assert.Equal(t, 175, rec.VitalSigns.HeightCM)
	assert.Equal(t, "Baixo", rec.VitalSigns.StressLevel)

	// Idempotent: a second fetch re-asserts the same constants.
	again, err := svc.CollectVitals(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, rec.VitalSigns, again.VitalSigns)
}

func TestCollectVitalsUnknownSession(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.CollectVitals(context.Background(), "7a1e9f4e-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProcessComplaintSealsRecord(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"```json\n{\"especialidade_medica\":\"Neurologia\",\"orientacao_ao_medico\":\"Avaliar cefaleia\"}\n```",
	}}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)
	_, err := svc.CollectVitals(context.Background(), id)
	require.NoError(t, err)

	rec, err := svc.ProcessComplaint(context.Background(), id, "dor de cabeça forte")
	require.NoError(t, err)

	assert.Equal(t, StatusFinal, rec.Status)
	assert.Equal(t, "dor de cabeça forte", rec.Complaint)
	assert.Equal(t, "Neurologia", rec.Specialty)
	assert.Equal(t, "Avaliar cefaleia", rec.GuidanceNote)
}

func TestProcessComplaintMalformedOutputLeavesSessionRetriable(t *testing.T) {
	model := &scriptedModel{responses: []string{"não consigo responder em JSON"}}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)

	_, err := svc.ProcessComplaint(context.Background(), id, "dor de cabeça")
	assert.ErrorIs(t, err, agent.ErrMalformedResponse)

	rec, err := svc.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, rec.Status)
	assert.Empty(t, rec.Complaint)
	assert.Empty(t, rec.Specialty)
}

func TestProcessComplaintWithoutModel(t *testing.T) {
	svc, _ := newTestService(nil)
	id := startTestSession(t, svc)

	_, err := svc.ProcessComplaint(context.Background(), id, "dor")
	assert.ErrorIs(t, err, agent.ErrUnavailable)
}

func TestChatOngoingTurn(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"status":"ongoing","bot_message":"Há quanto tempo?"}`,
	}}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)

	result, err := svc.Chat(context.Background(), id, "dor de cabeça forte")
	require.NoError(t, err)

	assert.Equal(t, StatusOngoing, result.Status)
	assert.Equal(t, "Há quanto tempo?", result.BotMessage)
	assert.Nil(t, result.Record)

	rec, err := svc.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, rec.Status)
	require.Len(t, rec.History, 2)
	assert.Equal(t, RoleUser, rec.History[0].Role)
	assert.Equal(t, "dor de cabeça forte", rec.History[0].Text)
	assert.Equal(t, RoleModel, rec.History[1].Role)
}

func TestChatPromptCarriesInstructionAndHistory(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"status":"ongoing","bot_message":"Há quanto tempo?"}`,
	}}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)
	_, err := svc.CollectVitals(context.Background(), id)
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), id, "dor de cabeça forte")
	require.NoError(t, err)

	require.NotEmpty(t, model.lastChat)
	instruction := model.lastChat[0]
	assert.Equal(t, agent.RoleModel, instruction.Role)
	assert.Contains(t, instruction.Text, "Nome: Ana")
	assert.Contains(t, instruction.Text, "Altura: 175cm")
	assert.Contains(t, instruction.Text, `"status": "ongoing"`)
	assert.Contains(t, instruction.Text, `"status": "final"`)

	last := model.lastChat[len(model.lastChat)-1]
	assert.Equal(t, agent.RoleUser, last.Role)
	assert.Equal(t, "dor de cabeça forte", last.Text)
}

func TestChatFinalTurnSealsAndRebuildsComplaint(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"status":"ongoing","bot_message":"Há quanto tempo?"}`,
		`{"status":"final","bot_message":"Obrigado","especialidade_medica":"Neurologia","orientacao_ao_medico":"Avaliar cefaleia"}`,
	}}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)

	_, err := svc.Chat(context.Background(), id, "dor de cabeça forte")
	require.NoError(t, err)

	result, err := svc.Chat(context.Background(), id, "há dois dias")
	require.NoError(t, err)

	assert.Equal(t, StatusFinal, result.Status)
	assert.Equal(t, "Obrigado", result.BotMessage)
	require.NotNil(t, result.Record)
	assert.Equal(t, "Neurologia", result.Record.Specialty)
	assert.Equal(t, "Avaliar cefaleia", result.Record.GuidanceNote)
	assert.Equal(t, "dor de cabeça forte\nhá dois dias", result.Record.Complaint)
	assert.Len(t, result.Record.History, 4)
}

func TestChatClosedSessionShortCircuits(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"status":"final","bot_message":"Obrigado","especialidade_medica":"Neurologia","orientacao_ao_medico":"Avaliar cefaleia"}`,
	}}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)

	_, err := svc.Chat(context.Background(), id, "dor de cabeça forte")
	require.NoError(t, err)
	callsAfterSeal := model.calls

	result, err := svc.Chat(context.Background(), id, "mais uma coisa")
	require.NoError(t, err)

	assert.Equal(t, StatusFinal, result.Status)
	assert.Equal(t, ClosedSessionMessage, result.BotMessage)
	require.NotNil(t, result.Record)
	assert.Equal(t, "Neurologia", result.Record.Specialty)
	assert.Equal(t, callsAfterSeal, model.calls, "model must not be called again on a closed session")

	// Monotonic finality: the extra utterance changed nothing.
	rec, err := svc.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, rec.History, 2)
	assert.Equal(t, StatusFinal, rec.Status)
}

func TestChatModelFailureRollsBackUserTurn(t *testing.T) {
	model := &scriptedModel{err: errors.New("network down")}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)

	_, err := svc.Chat(context.Background(), id, "dor de cabeça")
	require.Error(t, err)

	rec, err := svc.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, rec.History, "failed turn must leave no trace in the transcript")
	assert.Equal(t, StatusOngoing, rec.Status)
}

func TestChatSchemaMismatchRollsBackUserTurn(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"status":"final","bot_message":"Obrigado"}`,
		`{"status":"ongoing","bot_message":"Há quanto tempo?"}`,
	}}
	svc, _ := newTestService(model)
	id := startTestSession(t, svc)

	_, err := svc.Chat(context.Background(), id, "dor de cabeça forte")
	assert.ErrorIs(t, err, agent.ErrSchemaMismatch)

	rec, err := svc.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, rec.History)
	assert.Equal(t, StatusOngoing, rec.Status)

	// Session stays retriable and the retried utterance is not duplicated.
	result, err := svc.Chat(context.Background(), id, "dor de cabeça forte")
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, result.Status)

	rec, err = svc.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, rec.History, 2)
}

func TestChatSessionIsolation(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"status":"final","bot_message":"Obrigado","especialidade_medica":"Neurologia","orientacao_ao_medico":"Avaliar cefaleia"}`,
	}}
	svc, _ := newTestService(model)
	idA := startTestSession(t, svc)
	idB := startTestSession(t, svc)

	_, err := svc.Chat(context.Background(), idA, "dor de cabeça forte")
	require.NoError(t, err)

	recB, err := svc.GetRecord(context.Background(), idB)
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, recB.Status)
	assert.Empty(t, recB.Specialty)
	assert.Empty(t, recB.History)
}

func TestSealedSessionDispatchesReport(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"status":"final","bot_message":"Obrigado","especialidade_medica":"Neurologia","orientacao_ao_medico":"Avaliar cefaleia"}`,
	}}
	reporter := &capturingReport{sent: make(chan *IntakeRecord, 1)}
	store := NewMemoryStore()
	svc := NewService(store, model, stubWearable{}, reporter)
	id := startTestSession(t, svc)

	_, err := svc.Chat(context.Background(), id, "dor de cabeça forte")
	require.NoError(t, err)

	select {
	case rec := <-reporter.sent:
		assert.Equal(t, "Neurologia", rec.Specialty)
		assert.Equal(t, id, rec.ID.String())
	case <-time.After(2 * time.Second):
		t.Fatal("physician report was not dispatched")
	}
}
