package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTriagePrompt(t *testing.T) {
	prompt := BuildTriagePrompt("Nome: Ana, Idade: 30, Endereço: Rua X.", "dor de cabeça forte")

	assert.Contains(t, prompt, "Nome: Ana")
	assert.Contains(t, prompt, "Queixa do paciente: dor de cabeça forte")
	assert.Contains(t, prompt, `{"especialidade_medica": "[especialidade_aqui]"`)
	assert.Contains(t, prompt, "Não adicione nenhum texto antes ou depois do JSON.")
}

func TestBuildChatInstruction(t *testing.T) {
	instruction := BuildChatInstruction("Nome: Ana, Idade: 30, Endereço: Rua X.")

	assert.Contains(t, instruction, "Nome: Ana")
	assert.Contains(t, instruction, `{"status": "ongoing", "bot_message":`)
	assert.Contains(t, instruction, `{"status": "final", "bot_message":`)
	assert.Contains(t, instruction, "sem blocos de código")
}
