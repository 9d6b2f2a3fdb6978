package domain

import "github.com/pkg/errors"

var (
	// ErrInterrupted: espera (cooldown, vaga ou acesso) interrompida.
	ErrInterrupted = errors.New("interrupted")
	// ErrAccessFailed: o recurso sinalizou erro.
	ErrAccessFailed = errors.New("resource access failed")
	// ErrSchedulingFailure: falha inesperada dentro do loop de despacho.
	ErrSchedulingFailure = errors.New("internal scheduling failure")
	// ErrAlreadyResolved: tentativa de resolver um resultado pendente pela segunda vez.
	ErrAlreadyResolved = errors.New("request already resolved")
)
