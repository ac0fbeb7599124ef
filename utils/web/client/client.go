package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout corta los pedidos que se cuelgan; un escaneo completo de KSM es sincrónico
// así que el valor es generoso.
const DefaultTimeout = 30 * time.Second

// DoRequest es una función genérica para realizar peticiones HTTP (GET, POST, PUT, DELETE, etc.) desde un cliente.
// Retorna la respuesta del servidor. Si el status no es 200 retorna la respuesta junto con un error,
// el body puede traer el detalle.
//
// Parámetros:
//   - port: el puerto al que se hará la petición
//   - ip: la IP o dominio del servidor
//   - metodo: metodo HTTP
//   - query: parte final de la URL
//   - bodies ...[]byte: (opcional) body del request, puede pasarse vacío.
//
// Ejemplo:
//
//	func main() {
//		response, err := client.DoRequest(8002, "127.0.0.1", "GET", "memoria/ksm/nodos")
//		if err != nil {
//			slog.Error(fmt.Sprintf("Ocurrió un error: %v", err))
//			return
//		}
//		defer response.Body.Close()
//	}
func DoRequest(port int, ip string, metodo string, query string, bodies ...[]byte) (*http.Response, error) {
	cliente := &http.Client{Timeout: DefaultTimeout}

	url := fmt.Sprintf("http://%s:%d/%s", ip, port, query)

	req, err := http.NewRequest(metodo, url, ifBody(bodies...))
	if err != nil {
		slog.Error(fmt.Sprintf("error creando request a ip: %s puerto: %d", ip, port))
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	respuesta, err := cliente.Do(req)
	if err != nil {
		slog.Error(fmt.Sprintf("error enviando request a ip: %s puerto: %d - %v", ip, port, err))
		return nil, err
	}

	if respuesta.StatusCode != http.StatusOK {
		errorMsg := fmt.Errorf("status error: %d %s", respuesta.StatusCode, http.StatusText(respuesta.StatusCode))
		slog.Debug(errorMsg.Error(), "url", url)
		return respuesta, errorMsg
	}

	return respuesta, nil
}

// DoJSON serializa request (si no es nil), hace el pedido y decodifica la respuesta en response
// (si no es nil). Ante un status distinto de 200 devuelve el error con el cuerpo de la respuesta.
func DoJSON(port int, ip string, metodo string, query string, request any, response any) error {
	var bodies [][]byte
	if request != nil {
		body, err := json.Marshal(request)
		if err != nil {
			return fmt.Errorf("error serializando request: %w", err)
		}
		bodies = append(bodies, body)
	}

	resp, err := DoRequest(port, ip, metodo, query, bodies...)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			detail, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("%w: %s", err, bytes.TrimSpace(detail))
		}
		return err
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("error decodificando respuesta: %w", err)
	}
	return nil
}

func ifBody(bodies ...[]byte) io.Reader {
	if len(bodies) == 0 {
		return nil
	}
	return bytes.NewBuffer(bodies[0])
}
