// Package application contém o núcleo do agendador: fila por prioridade,
// portão de cooldown, limite de concorrência e o loop de despacho que resolve
// o resultado pendente de cada chamador.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Dispatcher.Submit(ctx, prioridade) bloqueia até o acesso ao recurso
// terminar e retorna o resultado em texto.
package application
