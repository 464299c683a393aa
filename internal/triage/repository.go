package triage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// postgresStore persists records in a fichas table with the variable-shape
// parts (vitals, history) held in JSONB columns.
type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds the Postgres-backed store.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Create(ctx context.Context, rec *IntakeRecord) error {
	return s.Save(ctx, rec)
}

func (s *postgresStore) Get(ctx context.Context, sessionID string) (*IntakeRecord, error) {
	query := `SELECT id, nome_completo, endereco, idade, dados_fisiologicos, queixa_paciente,
		historico, status, especialidade_medica, orientacao_ao_medico, created_at, updated_at
		FROM fichas WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var rec IntakeRecord
	var vitalsJSON, historyJSON []byte
	err := row.Scan(
		&rec.ID,
		&rec.FullName,
		&rec.Address,
		&rec.Age,
		&vitalsJSON,
		&rec.Complaint,
		&historyJSON,
		&rec.Status,
		&rec.Specialty,
		&rec.GuidanceNote,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "query ficha")
	}

	if len(vitalsJSON) > 0 {
		if err := json.Unmarshal(vitalsJSON, &rec.VitalSigns); err != nil {
			return nil, errors.Wrap(err, "unmarshal vitals")
		}
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &rec.History); err != nil {
			return nil, errors.Wrap(err, "unmarshal history")
		}
	}

	return &rec, nil
}

func (s *postgresStore) Save(ctx context.Context, rec *IntakeRecord) error {
	vitalsJSON, err := json.Marshal(rec.VitalSigns)
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(rec.History)
	if err != nil {
		return err
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()

	query := `
		INSERT INTO fichas (id, nome_completo, endereco, idade, dados_fisiologicos, queixa_paciente,
			historico, status, especialidade_medica, orientacao_ao_medico, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			dados_fisiologicos = $5,
			queixa_paciente = $6,
			historico = $7,
			status = $8,
			especialidade_medica = $9,
			orientacao_ao_medico = $10,
			updated_at = $12
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.FullName, rec.Address, rec.Age, vitalsJSON, rec.Complaint,
		historyJSON, rec.Status, rec.Specialty, rec.GuidanceNote, rec.CreatedAt, rec.UpdatedAt)
	return errors.Wrap(err, "save ficha")
}
