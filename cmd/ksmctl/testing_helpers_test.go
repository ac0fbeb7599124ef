package main

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/handlers"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/client"
)

// memoryServer levanta el módulo de memoria detrás de un httptest.Server y devuelve su IP y puerto.
func memoryServer(t *testing.T) (string, int) {
	t.Helper()
	cfg := models.DefaultConfig()
	cfg.MemorySize = 32 * models.PageSize
	cfg.DumpPath = t.TempDir()
	memory, err := services.NewMemory(cfg)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handlers.Routes(mux, memory)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		memory.Close()
	})

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func createRemote(t *testing.T, ip string, port int, data string) int {
	t.Helper()
	var resp models.PIDResponse
	require.NoError(t, client.DoJSON(port, ip, http.MethodPost, "memoria/proceso",
		models.ProcessRequest{Name: "test", Size: models.PageSize}, &resp))
	if data != "" {
		require.NoError(t, client.DoJSON(port, ip, http.MethodPost, "memoria/write",
			models.WriteRequest{PID: resp.PID, Address: 0, Data: []byte(data)}, nil))
	}
	return resp.PID
}

// runCmd corre ksmctl con args, partiendo siempre de los flags por defecto.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	memoryIP, memoryPort = "127.0.0.1", 8002
	verbose, jsonOut = false, false
	ksmPID, demoConfig = 0, ""

	rootCmd.SetArgs(args)
	return captureOutput(t, rootCmd.Execute)
}

// captureOutput captura stdout mientras corre fn.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}
