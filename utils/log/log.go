package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// InitLogger permite loguear tanto en consola como en archivo según el nivel que se le pase.
//
// Parámetros:
//   - logPath: la ubicación donde se va encontrar el archivo
//   - logLevel: nivel de logueo, este dato viene definido en el archivo de config.
//
// Ejemplo:
//
//	func main() {
//		log.InitLogger("./logs/memoria.log", "INFO")
//	}
func InitLogger(logPath string, logLevel string) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		panic(err)
	}

	// Consola y archivo a la vez.
	multiWriter := io.MultiWriter(os.Stdout, logFile)

	handler, err := NewHandler(multiWriter, logLevel)
	slog.SetDefault(slog.New(handler))

	if err != nil {
		slog.Warn(err.Error())
	}

	slog.Debug("Se ha configurado correctamente el logger", "archivo", logPath, "nivel", logLevel)
}

// NewHandler arma el mismo TextHandler que usa InitLogger pero sobre cualquier writer.
// Si el nivel no existe devuelve un handler en INFO junto con el error.
func NewHandler(writer io.Writer, logLevel string) (slog.Handler, error) {
	level, err := ConvertStringToLogLevel(logLevel)

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: level,
	})
	return handler, err
}

// ConvertStringToLogLevel traduce el log_level del config al tipo slog.Level.
func ConvertStringToLogLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("no existe el nivel %q, se coloca INFO por defecto", levelStr)
	}
}
