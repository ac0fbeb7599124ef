// Package ksm implementa la fusión de páginas idénticas (samepage merging) de la memoria
// simulada: recorre las páginas residentes de los procesos, detecta frames con el mismo
// contenido, los colapsa en un único frame compartido de solo lectura y devuelve una copia
// privada cuando alguno de los procesos escribe.
//
// El motor no conoce la memoria física ni las tablas de páginas concretas: las recibe a
// través de las interfaces Memory, PageTable, TranslationCache y ProcessLister.
package ksm

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
)

// Memory es el asignador de frames y el acceso a su contenido.
type Memory interface {
	AllocFrame() (models.PhysAddr, error)
	FreeFrame(pa models.PhysAddr)
	Frame(pa models.PhysAddr) []byte
}

// PageTable resuelve la entrada de una dirección virtual; nil si no existe.
// El puntero devuelto es la entrada real: escribir en él cambia la traducción.
type PageTable interface {
	Lookup(va models.VirtAddr) *models.PTE
}

// TranslationCache se invalida después de cada cambio de destino o permisos de una entrada.
type TranslationCache interface {
	Flush()
}

// Process es la vista de un proceso que necesita el escaneo.
type Process struct {
	PID       int
	State     models.Estado
	Size      uint64
	PageTable PageTable
}

// ProcessLister entrega una foto consistente de los procesos existentes.
type ProcessLister interface {
	Snapshot() []Process
}

// Hasher calcula la huella de 64 bits del contenido de un frame.
type Hasher func(content []byte) uint64

// DefaultHasher es xxh64 con semilla 0.
func DefaultHasher(content []byte) uint64 {
	return xxhash.Sum64(content)
}

var (
	ErrNotCopyOnWrite    = errors.New("ksm: la página no está protegida copy-on-write por KSM")
	ErrStableTableFull   = errors.New("ksm: tabla de nodos estables llena")
	ErrUnstableTableFull = errors.New("ksm: tabla de nodos inestables llena")
	ErrNotBootstrapped   = errors.New("ksm: falta inicializar la página cero")
	ErrPoisoned          = errors.New("ksm: registro inconsistente, el motor quedó detenido")
)

// ConsistencyError describe una violación interna del registro. Es fatal: el motor entra en
// panic con este valor y no vuelve a operar.
type ConsistencyError struct {
	Op  string
	Msg string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("ksm: %s: %s", e.Op, e.Msg)
}

// Stats son los contadores de una pasada de escaneo.
type Stats struct {
	Scanned int
	Merged  int
}

// Engine es el motor de KSM. Un único mutex protege el registro durante la búsqueda,
// la reescritura de la entrada y la invalidación de la TLB.
type Engine struct {
	mu       sync.Mutex
	mem      Memory
	tlb      TranslationCache
	hash     Hasher
	verify   bool
	registry *Registry
	poisoned *ConsistencyError
}

type Option func(*Engine)

// WithHasher reemplaza la función de huella (los tests la usan para forzar colisiones).
func WithHasher(h Hasher) Option {
	return func(e *Engine) { e.hash = h }
}

// WithContentCheck hace que cada coincidencia de huella se confirme comparando bytes.
func WithContentCheck(enabled bool) Option {
	return func(e *Engine) { e.verify = enabled }
}

// WithCapacity fija la cantidad máxima de nodos estables e inestables.
func WithCapacity(stable, unstable int) Option {
	return func(e *Engine) { e.registry = NewRegistry(stable, unstable) }
}

func New(mem Memory, tlb TranslationCache, opts ...Option) *Engine {
	e := &Engine{
		mem:      mem,
		tlb:      tlb,
		hash:     DefaultHasher,
		registry: NewRegistry(models.DefaultStableNodes, models.DefaultUnstableNodes),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bootstrap vacía ambas tablas e instala el nodo centinela de la página cero en la posición 0
// de la tabla estable. El frame tiene que estar en cero.
func (e *Engine) Bootstrap(zero models.PhysAddr) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poisoned != nil {
		return e.poisonedErr()
	}

	zero = models.FrameRoundDown(zero)
	content := e.mem.Frame(zero)
	for _, b := range content {
		if b != 0 {
			return fmt.Errorf("ksm: el frame %v no es una página cero", zero)
		}
	}

	e.registry.Reset(&Node{
		PA:       zero,
		Hash:     e.hash(content),
		RefCount: 1,
		Zero:     true,
	})
	slog.Debug("KSM inicializado", "pagina_cero", zero)
	return nil
}

// usable se llama con el lock tomado al entrar a cada operación pública.
func (e *Engine) usable() error {
	if e.poisoned != nil {
		return e.poisonedErr()
	}
	if e.registry.Sentinel() == nil {
		return ErrNotBootstrapped
	}
	return nil
}

func (e *Engine) poisonedErr() error {
	return fmt.Errorf("%w: %v", ErrPoisoned, e.poisoned)
}

// fail deja al motor envenenado y entra en panic. Se llama con el lock tomado; los defer de
// las operaciones públicas lo liberan durante el unwind.
func (e *Engine) fail(op string, format string, args ...any) {
	err := &ConsistencyError{Op: op, Msg: fmt.Sprintf(format, args...)}
	e.poisoned = err
	slog.Error("## KSM - Violación de consistencia", "op", op, "error", err.Msg)
	panic(err)
}

// lookup devuelve la entrada de va, que tiene que existir y ser válida.
func (e *Engine) lookup(op string, pt PageTable, va models.VirtAddr) *models.PTE {
	pte := pt.Lookup(va)
	if pte == nil || !pte.Valid() {
		e.fail(op, "pte de %v no mapeada", va)
	}
	return pte
}
