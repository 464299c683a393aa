package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTriageResult(t *testing.T) {
	t.Run("valid result", func(t *testing.T) {
		res, err := ParseTriageResult(`{"especialidade_medica":"Neurologia","orientacao_ao_medico":"Avaliar cefaleia"}`)
		require.NoError(t, err)
		assert.Equal(t, "Neurologia", res.Specialty)
		assert.Equal(t, "Avaliar cefaleia", res.GuidanceNote)
	})

	t.Run("fenced result", func(t *testing.T) {
		res, err := ParseTriageResult("```json\n{\"especialidade_medica\":\"Cardiologia\",\"orientacao_ao_medico\":\"Avaliar dor torácica\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "Cardiologia", res.Specialty)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseTriageResult("desculpe, não posso ajudar")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("missing guidance", func(t *testing.T) {
		_, err := ParseTriageResult(`{"especialidade_medica":"Neurologia"}`)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("non-string specialty", func(t *testing.T) {
		_, err := ParseTriageResult(`{"especialidade_medica":42,"orientacao_ao_medico":"x"}`)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})
}

func TestParseChatTurn(t *testing.T) {
	t.Run("ongoing turn", func(t *testing.T) {
		turn, err := ParseChatTurn(`{"status":"ongoing","bot_message":"Há quanto tempo?"}`)
		require.NoError(t, err)
		assert.Equal(t, "ongoing", turn.Status)
		assert.Equal(t, "Há quanto tempo?", turn.BotMessage)
		assert.Empty(t, turn.Specialty)
	})

	t.Run("ongoing turn with null triage fields", func(t *testing.T) {
		turn, err := ParseChatTurn(`{"status":"ongoing","bot_message":"E a intensidade?","especialidade_medica":null,"orientacao_ao_medico":null}`)
		require.NoError(t, err)
		assert.Equal(t, "ongoing", turn.Status)
	})

	t.Run("ongoing turn with extra fields is tolerated", func(t *testing.T) {
		turn, err := ParseChatTurn(`{"status":"ongoing","bot_message":"x","especialidade_medica":"y"}`)
		require.NoError(t, err)
		assert.Empty(t, turn.Specialty)
	})

	t.Run("final turn", func(t *testing.T) {
		turn, err := ParseChatTurn(`{"status":"final","bot_message":"Obrigado","especialidade_medica":"Neurologia","orientacao_ao_medico":"Avaliar cefaleia"}`)
		require.NoError(t, err)
		assert.Equal(t, "final", turn.Status)
		assert.Equal(t, "Neurologia", turn.Specialty)
		assert.Equal(t, "Avaliar cefaleia", turn.GuidanceNote)
	})

	t.Run("final turn missing triage fields", func(t *testing.T) {
		_, err := ParseChatTurn(`{"status":"final","bot_message":"x"}`)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("final turn with null specialty", func(t *testing.T) {
		_, err := ParseChatTurn(`{"status":"final","bot_message":"x","especialidade_medica":null,"orientacao_ao_medico":"y"}`)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := ParseChatTurn(`{"status":"done","bot_message":"x"}`)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("missing bot message", func(t *testing.T) {
		_, err := ParseChatTurn(`{"status":"ongoing"}`)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseChatTurn("Claro! Aqui está o JSON: {")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}
