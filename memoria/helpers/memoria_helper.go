package helpers

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/config"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/log"
)

// CreateDirectory crea dir y sus padres si no existen.
func CreateDirectory(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("error al crear el directorio %s: %w", dir, err)
	}
	slog.Debug(fmt.Sprintf("Directorio %s creado o ya existía.", dir))
	return nil
}

// InitMemory carga el config en models.MemoryConfig (panic si no se puede), configura el
// logger y crea los directorios de logs y de dumps.
func InitMemory(configPath string, logPath string) (*models.Config, error) {
	config.InitConfig(configPath, &models.MemoryConfig)

	if err := CreateDirectory(filepath.Dir(logPath)); err != nil {
		return nil, err
	}
	log.InitLogger(logPath, models.MemoryConfig.LogLevel)

	cfg := models.MemoryConfig
	slog.Debug("Config de memoria cargada",
		"puerto", cfg.PortMemory,
		"memoria", cfg.MemorySize,
		"niveles", cfg.NumberOfLevels,
		"tlb", fmt.Sprintf("%d/%s", cfg.TlbEntries, cfg.TlbReplacement),
		"nodos_estables", cfg.KsmStableNodes,
		"nodos_inestables", cfg.KsmUnstableNodes,
		"verificar_contenido", cfg.KsmVerifyContent)

	if err := CreateDirectory(cfg.DumpPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DumpName es el nombre del archivo de dump de pid tomado en at: <pid>-<yyyymmdd-hhmmss>.dmp.
func DumpName(pid int, at time.Time) string {
	return fmt.Sprintf("%d-%s.dmp", pid, at.Format("20060102-150405"))
}
