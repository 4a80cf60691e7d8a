package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/animalabs/ragpipe/core"
)

// NotFoundIndicator is the backend's own "don't know" sentinel. When the
// generated text contains it, the answer is returned verbatim and no
// citation block is appended.
const NotFoundIndicator = "Não encontrei a informação sobre isso na base de conhecimento"

// User-facing literals. Every failure class maps to exactly one of
// these; the pipeline entry point never surfaces a raw error.
const (
	MsgNoUserMessage = "Erro: Nenhuma mensagem de usuário fornecida."
	MsgNoUserID      = "Erro: ID do usuário ('user.name' ou 'user_id') não encontrado na requisição."
	MsgRateLimited   = "Erro: Limite de requisições para a API excedido. Tente novamente mais tarde."
	MsgEmptyAnswer   = "Não foi possível gerar uma resposta com as informações disponíveis."
)

// IsErrorMessage reports whether s is one of the pipeline's failure
// literals rather than a backend answer.
func IsErrorMessage(s string) bool {
	return strings.HasPrefix(s, "Erro") || strings.HasPrefix(s, "Ocorreu um erro")
}

func msgTimeout(url string, timeout time.Duration) string {
	return fmt.Sprintf("Erro: A API em %s demorou muito para responder (timeout de %ds).",
		url, int(timeout.Seconds()))
}

func msgAuth(status int) string {
	return fmt.Sprintf("Erro de Autenticação/Autorização (%d) ao acessar a API. Verifique a API Key.", status)
}

func msgNotFound(status int, url string) string {
	return fmt.Sprintf("Erro (%d): Recurso não encontrado em %s. Verifique ID da Base/Endpoint.", status, url)
}

func msgBadRequest(status int) string {
	return fmt.Sprintf("Erro na requisição (%d) para a API. Verifique os dados enviados.", status)
}

func msgBackendInternal(status int) string {
	return fmt.Sprintf("Erro interno na API (%d). Tente novamente mais tarde.", status)
}

func msgConnection(url string) string {
	return fmt.Sprintf("Erro de conexão ao tentar acessar a API em %s.", url)
}

func msgDecode(url string) string {
	return fmt.Sprintf("Erro: Resposta inválida (não JSON) recebida da API em %s.", url)
}

func msgUnexpected(err error) string {
	return fmt.Sprintf("Ocorreu um erro inesperado durante a chamada da API: %s.", core.Category(err))
}
