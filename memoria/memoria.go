package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	memoryHandler "github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/handlers"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/helpers"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/handlers"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/server"
)

const (
	//NO borrar el comentario de ConfigPath
	ConfigPath = "memoria/configs/memoria.json" //"./configs/memoria.json"
	LogPath    = "./logs/memoria.log"           //"./memoria.log"
)

func main() {
	configPath := ConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := helpers.InitMemory(configPath, LogPath)
	if err != nil {
		panic(err)
	}

	memory, err := services.NewMemory(cfg)
	if err != nil {
		slog.Error(fmt.Sprintf("error inicializando memoria: %v", err))
		panic(err)
	}
	defer memory.Close()
	slog.Debug("Memoria inicializada", "frames_libres", memory.FreePages())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", handlers.HandshakeHandler("memoria", "Bienvenido al módulo de Memoria", nil))
	mux.HandleFunc("GET /memoria", handlers.HandshakeHandler("memoria", "Memoria en funcionamiento 🚀", memory.VerifyKsm))
	memoryHandler.Routes(mux, memory)
	slog.Info("Memoria lista")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.InitServer(ctx, cfg.PortMemory, mux); err != nil {
		slog.Error(fmt.Sprintf("error initializing server: %v", err))
		panic(err)
	}
}
