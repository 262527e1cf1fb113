// Package httpjson concentra a escrita de respostas JSON e o mapeamento
// de erros de domínio para status HTTP usado pelos handlers dos serviços.
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/radieske/match-bet-platform/internal/shared/lock"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// maxBody limita o corpo aceito nos POSTs
const maxBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

// Write serializa a resposta em JSON e define o status HTTP
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode lê o corpo JSON em dst; campos desconhecidos são rejeitados
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// BadRequest responde 400 com a mensagem informada
func BadRequest(w http.ResponseWriter, msg string) {
	Write(w, http.StatusBadRequest, errorBody{Error: msg})
}

// Status traduz err para o status HTTP. Erros listados em invalid viram 400.
func Status(err error, invalid ...error) int {
	for _, target := range invalid {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Error escreve {"error": ...} com o status de Status(err, invalid...)
func Error(w http.ResponseWriter, err error, invalid ...error) {
	status := Status(err, invalid...)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error" // detalhe fica só no log
	}
	Write(w, status, errorBody{Error: msg})
}
