// Package domain define contratos e tipos de domínio do agendador de acesso
// ao recurso: relógio, operação de acesso, pool de vagas, eventos de acesso
// e a taxonomia de erros.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
