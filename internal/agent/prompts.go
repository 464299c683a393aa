package agent

// prompts.go holds the Portuguese instructions sent to the model. The
// response contract is enforced purely through wording, repeated on every
// call, because the model is stateless and gives no structured-output
// guarantee.

import "fmt"

const (
	triageRolePreamble = "Você é um atendente de triagem médica para urgências ou clínicas médicas. " +
		"Seu papel é ouvir as queixas e dúvidas de saúde do usuário e colher informações suficientes para apoiar o diagnóstico médico. "

	singleShotContract = "Com base na queixa e nos dados fornecidos, defina a especialidade médica mais adequada para atendê-lo " +
		"e gere uma orientação concisa para o médico. " +
		"O output DEVE estar no formato JSON: {\"especialidade_medica\": \"[especialidade_aqui]\", \"orientacao_ao_medico\": \"[orientacao_aqui]\"}. " +
		"Não adicione nenhum texto antes ou depois do JSON. Não estenda a conversa. " +
		"Assim que o JSON for gerado, sua tarefa está completa. Apenas o JSON deve ser retornado."

	chatContract = "Converse com o paciente para entender a queixa principal, fazendo perguntas de esclarecimento curtas, " +
		"uma de cada vez, até reunir informações suficientes para a triagem. " +
		"Cada resposta sua DEVE ser apenas um objeto JSON, sem nenhum texto antes ou depois e sem blocos de código. " +
		"Enquanto precisar de mais informações, responda no formato: {\"status\": \"ongoing\", \"bot_message\": \"[sua pergunta aqui]\"}. " +
		"Quando tiver informações suficientes, responda no formato: {\"status\": \"final\", \"bot_message\": \"[mensagem de encerramento]\", " +
		"\"especialidade_medica\": \"[especialidade_aqui]\", \"orientacao_ao_medico\": \"[orientacao_aqui]\"}."
)

// BuildTriagePrompt assembles the single-shot instruction: patient data,
// the complaint and the strict JSON contract in one prompt string.
func BuildTriagePrompt(patientSummary, complaint string) string {
	return fmt.Sprintf(
		"%sVocê já recebeu os seguintes dados pessoais e fisiológicos: %s "+
			"Agora, o paciente irá descrever sua queixa principal. %s\nQueixa do paciente: %s",
		triageRolePreamble, patientSummary, singleShotContract, complaint)
}

// BuildChatInstruction assembles the synthetic first message of a
// conversational session. It is re-sent with the full history on every
// turn, as the model keeps no state between calls.
func BuildChatInstruction(patientSummary string) string {
	return fmt.Sprintf(
		"%sVocê já recebeu os seguintes dados pessoais e fisiológicos: %s %s",
		triageRolePreamble, patientSummary, chatContract)
}
