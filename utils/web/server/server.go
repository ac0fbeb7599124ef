package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ShutdownTimeout es lo que se espera a que terminen los pedidos en curso al apagar.
const ShutdownTimeout = 5 * time.Second

// InitServer levanta el servidor HTTP en el puerto indicado y lo mantiene hasta que ctx se
// cancela; ahí deja de aceptar conexiones y espera a los pedidos en curso. Retorna nil si el
// apagado fue ordenado.
//
// Ejemplo:
//
//	func main() {
//		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//		defer stop()
//		if err := server.InitServer(ctx, models.MemoryConfig.PortMemory, mux); err != nil {
//			panic(err)
//		}
//	}
func InitServer(ctx context.Context, port int, handler http.Handler) error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		slog.Error("Error al escuchar en el puerto", "port", port, "error", err)
		return err
	}
	return Serve(ctx, listener, handler)
}

// Serve es InitServer sobre un listener ya abierto (los tests usan el puerto 0).
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Servidor escuchando", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		slog.Error("El servidor dejó de escuchar", "error", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("Servidor detenido")
	return nil
}

// SendJsonResponse retorna data en formato JSON con status 200.
func SendJsonResponse(writer http.ResponseWriter, data any) {
	SendJsonStatus(writer, http.StatusOK, data)
}

// SendJsonStatus es SendJsonResponse con un status a elección.
func SendJsonStatus(writer http.ResponseWriter, status int, data any) {
	response, err := json.Marshal(data)
	if err != nil {
		http.Error(writer, "Error al convertir datos a JSON", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	writer.Write(response)
}
