package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOngoing Status = "ongoing"
	StatusFinal   Status = "final"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry in a session's transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PersonalInfo holds the administrative data collected when the
// session is opened. Immutable after creation.
type PersonalInfo struct {
	FullName string `json:"nome_completo"`
	Address  string `json:"endereco"`
	Age      int    `json:"idade"`
}

// VitalSigns is the reading set reported by the smartwatch integration.
type VitalSigns struct {
	HeightCM          int    `json:"altura_cm"`
	WeightKG          int    `json:"peso_kg"`
	SystolicPressure  int    `json:"pressao_arterial_sistolica"`
	DiastolicPressure int    `json:"pressao_arterial_diastolica"`
	BloodOxygenPct    int    `json:"oxigenacao_sangue_percentual"`
	StressLevel       string `json:"nivel_estresse"`
}

// IntakeRecord is the ficha de atendimento: everything gathered for one
// triage session. One record = one state machine instance; Status only
// ever moves ongoing -> final, and Specialty/GuidanceNote are set
// exactly once, together with that transition.
type IntakeRecord struct {
	ID uuid.UUID `json:"session_id"`

	PersonalInfo

	VitalSigns *VitalSigns `json:"dados_fisiologicos,omitempty"`

	// Complaint is set directly in single-shot mode; in conversational
	// mode it is reconstructed from the user turns when the session seals.
	Complaint string `json:"queixa_paciente"`

	// History is append-only, in conversational order.
	History []Turn `json:"historico_conversa,omitempty"`

	Status       Status `json:"status_conversa"`
	Specialty    string `json:"especialidade_medica"`
	GuidanceNote string `json:"orientacao_ao_medico"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Final reports whether the session outcome has been sealed.
func (r *IntakeRecord) Final() bool {
	return r.Status == StatusFinal
}

// PatientSummary renders the personal and physiological data the way the
// model prompt expects it.
func (r *IntakeRecord) PatientSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nome: %s, Idade: %d, Endereço: %s.", r.FullName, r.Age, r.Address)
	if v := r.VitalSigns; v != nil {
		fmt.Fprintf(&b,
			" Dados Fisiológicos: Altura: %dcm, Peso: %dkg, Pressão Arterial: %d/%d mmHg, Oxigenação: %d%%, Nível de Estresse: %s.",
			v.HeightCM, v.WeightKG, v.SystolicPressure, v.DiastolicPressure, v.BloodOxygenPct, v.StressLevel)
	}
	return b.String()
}

// UserTranscript joins every user turn in chronological order. This is
// what Complaint becomes once a conversational session reaches final.
func (r *IntakeRecord) UserTranscript() string {
	parts := make([]string, 0, len(r.History))
	for _, t := range r.History {
		if t.Role == RoleUser {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}
