package handlers

import (
	"net/http"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/server"
)

func WriteHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.WriteRequest
		if !decode(w, r, &req) {
			return
		}

		if err := memory.Write(req.PID, req.Address, req.Data); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func ReadMemoryHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ReadRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Size < 0 {
			http.Error(w, "size negativo", http.StatusBadRequest)
			return
		}

		data, err := memory.Read(req.PID, req.Address, req.Size)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.ReadResponse{Data: data})
	}
}

func PTEHandler(memory *services.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PTERequest
		if !decode(w, r, &req) {
			return
		}

		pte, err := memory.PTE(req.PID, req.Address)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.PTEResponse{PA: pte.Addr(), Permissions: pte.Permissions()})
	}
}
