package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/ksm"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/server"
)

// Routes registra en mux todos los endpoints del módulo de memoria.
func Routes(mux *http.ServeMux, memory *services.Memory) {
	mux.HandleFunc("GET /config/memoria", MemoryConfigHandler(memory))

	mux.HandleFunc("POST /memoria/ksm", KsmHandler(memory))
	mux.HandleFunc("GET /memoria/ksm/nodos", KsmNodesHandler(memory))

	mux.HandleFunc("POST /memoria/proceso", CreateProcessHandler(memory))
	mux.HandleFunc("POST /memoria/fork", ForkHandler(memory))
	mux.HandleFunc("POST /memoria/estado", SetStateHandler(memory))
	mux.HandleFunc("POST /memoria/sbrk", GrowHandler(memory))
	mux.HandleFunc("POST /memoria/liberarpcb", EndProcessHandler(memory))
	mux.HandleFunc("POST /memoria/dump-memory", DumpMemoryHandler(memory))

	mux.HandleFunc("POST /memoria/write", WriteHandler(memory))
	mux.HandleFunc("POST /memoria/leerMemoria", ReadMemoryHandler(memory))
	mux.HandleFunc("POST /memoria/pte", PTEHandler(memory))
}

func MemoryConfigHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server.SendJsonResponse(w, memory.Config())
	}
}

// decode lee el body JSON del pedido. Si falla ya respondió 400.
func decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		slog.Error("Invalid request", "error", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

// statusOf traduce los errores de memoria a códigos HTTP.
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrProcessNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSegmentationFault):
		return http.StatusConflict
	case errors.Is(err, services.ErrOutOfMemory),
		errors.Is(err, ksm.ErrStableTableFull),
		errors.Is(err, ksm.ErrUnstableTableFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrAddressOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sendError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("Error en memoria", "error", err)
	} else {
		slog.Warn("Pedido rechazado", "status", status, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func KsmHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.KsmRequest
		if !decode(w, r, &req) {
			return
		}

		resp, err := memory.Ksm(req)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, resp)
	}
}

func KsmNodesHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server.SendJsonResponse(w, memory.Nodes())
	}
}
