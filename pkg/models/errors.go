package models

import "errors"

// Erros de domínio compartilhados entre storage e serviços.
// Caminhos que movem dinheiro sempre propagam estes erros (fail-closed).
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
)
