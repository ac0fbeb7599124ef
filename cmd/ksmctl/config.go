package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Edita archivos de configuración de memoria",
	}
	cmd.AddCommand(newConfigSetCmd())
	rootCmd.AddCommand(cmd)
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <archivo> <clave> <valor> [<clave> <valor> ...]",
		Short: "Reemplaza claves de un config JSON",
		Long: `El comando config set cambia en el lugar los valores de las claves pedidas.
Cada valor se interpreta como JSON (números, booleanos) y si no lo es se guarda
como string. Solo se tocan claves que ya existen en el archivo y el resultado
tiene que seguir siendo una configuración de memoria válida.

Ejemplo:
  ksmctl config set memoria/configs/memoria.json ksm_verify_content true
  ksmctl config set memoria/configs/memoria.json log_level DEBUG port_memory 8010`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 || len(args)%2 != 1 {
				return errors.New("se esperan un archivo y pares <clave> <valor>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1:])
		},
	}
}

// parseUpdates arma el mapa clave -> valor. Lo que no es JSON válido (una IP, un path) queda como string.
func parseUpdates(pairs []string) map[string]any {
	updates := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		var parsed any
		if err := json.Unmarshal([]byte(pairs[i+1]), &parsed); err != nil {
			parsed = pairs[i+1]
		}
		updates[pairs[i]] = parsed
	}
	return updates
}

func runConfigSet(path string, pairs []string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("no se pudo leer %s: %w", path, err)
	}
	var data map[string]any
	if err := json.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("JSON inválido en %s: %w", path, err)
	}

	updates := parseUpdates(pairs)
	modified := 0
	for _, key := range slices.Sorted(maps.Keys(updates)) {
		if _, ok := data[key]; !ok {
			printInfo("  Clave '%s' inexistente en %s, se ignora\n", key, path)
			continue
		}
		data[key] = updates[key]
		printVerbose("  Modificada '%s' a '%v'\n", key, updates[key])
		modified++
	}
	if modified == 0 {
		return fmt.Errorf("no se encontraron claves a actualizar en %s", path)
	}

	newJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	var cfg models.Config
	if err := json.Unmarshal(newJSON, &cfg); err != nil {
		return fmt.Errorf("los valores no respetan los tipos del config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.WriteFile(path, append(newJSON, '\n'), 0644); err != nil {
		return err
	}
	printInfo("El archivo %s ha sido actualizado correctamente (%d claves).\n", path, modified)
	return nil
}
