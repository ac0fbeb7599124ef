package handlers

import (
	"log/slog"
	"net/http"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/server"
)

func CreateProcessHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ProcessRequest
		if !decode(w, r, &req) {
			return
		}

		p, err := memory.CreateProcess(req.Name, req.Size)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.PIDResponse{PID: p.PID})
	}
}

func ForkHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PIDRequest
		if !decode(w, r, &req) {
			return
		}

		child, err := memory.Fork(req.PID)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.PIDResponse{PID: child.PID})
	}
}

func SetStateHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.StateRequest
		if !decode(w, r, &req) {
			return
		}

		if err := memory.SetState(req.PID, req.State); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func GrowHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.GrowRequest
		if !decode(w, r, &req) {
			return
		}

		size, err := memory.Grow(req.PID, req.Delta)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.GrowResponse{Size: int(size)})
	}
}

// EndProcessHandler libera toda la memoria de un proceso que terminó.
func EndProcessHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PIDRequest
		if !decode(w, r, &req) {
			return
		}

		if err := memory.Exit(req.PID); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func DumpMemoryHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PIDRequest
		if !decode(w, r, &req) {
			return
		}

		path, err := memory.Dump(req.PID)
		if err != nil {
			sendError(w, err)
			return
		}
		slog.Debug("Dump generado", "pid", req.PID, "archivo", path)
		server.SendJsonResponse(w, models.DumpResponse{Path: path})
	}
}
