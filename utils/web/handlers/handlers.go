package handlers

import (
	"net/http"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/server"
)

// Status es la respuesta del handshake de un módulo.
type Status struct {
	Module  string `json:"modulo"`
	Message string `json:"mensaje"`
	Error   string `json:"error,omitempty"`
}

// HandshakeHandler se usa para chequear la conexión al servidor. Si check no es nil se
// ejecuta en cada pedido y un error responde 503, así un módulo que quedó inconsistente
// se ve desde afuera.
//
// Ejemplo:
//
//	mux.HandleFunc("GET /memoria", handlers.HandshakeHandler("memoria", "Memoria en funcionamiento", memory.VerifyKsm))
func HandshakeHandler(module string, message string, check func() error) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		status := Status{Module: module, Message: message}
		if check != nil {
			if err := check(); err != nil {
				status.Error = err.Error()
				server.SendJsonStatus(writer, http.StatusServiceUnavailable, status)
				return
			}
		}
		server.SendJsonResponse(writer, status)
	}
}
