package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
)

// Validator lo implementan las configuraciones que necesitan completar valores por defecto
// o rechazar combinaciones inválidas después de leer el archivo.
type Validator interface {
	Validate() error
}

// InitConfig lee el archivo de configuración y carga sus valores en config. Si algo falla entra en panic,
// un módulo no puede arrancar sin su configuración.
//
// Parámetros:
//   - filePath: ubicacion donde se encuentra el archivo de configuracion
//   - config: puntero a cualquier tipo de estructura
//
// Ejemplo:
//
//	func main() {
//		var memoryConfig *models.Config
//		config.InitConfig("memoria/configs/memoria.json", &memoryConfig)
//	}
func InitConfig(filePath string, config any) {
	if err := LoadConfig(filePath, config); err != nil {
		panic(fmt.Errorf("error al configurar el archivo %s: %w", filePath, err))
	}
}

// LoadConfig es la variante de InitConfig que devuelve el error en lugar de entrar en panic.
// Si la estructura cargada implementa Validator se valida antes de retornar.
func LoadConfig(filePath string, config any) error {
	if err := setupConfig(filePath, config); err != nil {
		return err
	}

	if v, ok := validatorOf(config); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("configuración inválida: %w", err)
		}
	}
	return nil
}

func setupConfig(filePath string, config any) error {
	configFile, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer configFile.Close()

	jsonParser := json.NewDecoder(configFile)
	if err := jsonParser.Decode(config); err != nil {
		return err
	}

	return nil
}

// validatorOf contempla que se pase tanto *T como **T (las configs globales son punteros).
func validatorOf(config any) (Validator, bool) {
	if v, ok := config.(Validator); ok {
		return v, true
	}
	value := reflect.ValueOf(config)
	if value.Kind() == reflect.Pointer && !value.IsNil() && value.Elem().Kind() == reflect.Pointer && !value.Elem().IsNil() {
		v, ok := value.Elem().Interface().(Validator)
		return v, ok
	}
	return nil, false
}
