package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/signintech/gopdf"

	"medical-triage-agent/internal/triage"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient        TelegramClient
	physicianChatID int64
}

func NewService(tg TelegramClient, physicianChatID int64) *Service {
	return &Service{
		tgClient:        tg,
		physicianChatID: physicianChatID,
	}
}

// SendPhysicianReport renders the sealed record as PDF and delivers it to
// the physician chat.
func (s *Service) SendPhysicianReport(ctx context.Context, rec *triage.IntakeRecord) error {
	pdf, err := s.Render(rec)
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("ficha_%s.pdf", rec.ID)
	if err := s.tgClient.SendDocument(ctx, s.physicianChatID, pdf, fileName); err != nil {
		return err
	}
	log.Info().Str("session_id", rec.ID.String()).Msg("ficha enviada ao médico")
	return nil
}

// Render produces the physician-facing PDF of a completed intake record.
func (s *Service) Render(rec *triage.IntakeRecord) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	// DejaVuSans covers the accented characters of the Portuguese text.
	fontPaths := []string{
		"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	}

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, install ttf-dejavu: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Ficha de Atendimento - Triagem Médica")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Data: %s", time.Now().Format("02.01.2006 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Sessão: %s", rec.ID))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Paciente: %s, %d anos", rec.FullName, rec.Age))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Endereço: %s", rec.Address))
	pdf.Br(25)

	if v := rec.VitalSigns; v != nil {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Dados fisiológicos:")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return nil, err
		}
		pdf.Cell(nil, fmt.Sprintf("- Altura: %d cm, Peso: %d kg", v.HeightCM, v.WeightKG))
		pdf.Br(12)
		pdf.Cell(nil, fmt.Sprintf("- Pressão arterial: %d/%d mmHg", v.SystolicPressure, v.DiastolicPressure))
		pdf.Br(12)
		pdf.Cell(nil, fmt.Sprintf("- Oxigenação: %d%%, Nível de estresse: %s", v.BloodOxygenPct, v.StressLevel))
		pdf.Br(25)
	}

	if err := s.writeSection(&pdf, "Queixa do paciente:", rec.Complaint); err != nil {
		return nil, err
	}
	if err := s.writeSection(&pdf, "Especialidade médica:", rec.Specialty); err != nil {
		return nil, err
	}
	if err := s.writeSection(&pdf, "Orientação ao médico:", rec.GuidanceNote); err != nil {
		return nil, err
	}

	if len(rec.History) > 0 {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Transcrição da conversa:")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 10); err != nil {
			return nil, err
		}
		for _, turn := range rec.History {
			speaker := "Paciente"
			if turn.Role == triage.RoleModel {
				speaker = "Atendente"
			}
			lines, _ := pdf.SplitText(fmt.Sprintf("%s: %s", speaker, turn.Text), 500)
			for _, l := range lines {
				pdf.Cell(nil, l)
				pdf.Br(12)
			}
			pdf.Br(3)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) writeSection(pdf *gopdf.GoPdf, title, body string) error {
	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return err
	}
	pdf.Cell(nil, title)
	pdf.Br(15)
	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return err
	}
	if body == "" {
		body = "-"
	}
	lines, _ := pdf.SplitText(body, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(12)
	}
	pdf.Br(15)
	return nil
}
