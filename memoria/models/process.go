package models

// Estado es el estado de planificación de un proceso visto desde memoria.
type Estado string

const (
	EstadoNew       Estado = "NEW"
	EstadoReady     Estado = "READY"
	EstadoExecuting Estado = "EXEC"
	EstadoBlocked   Estado = "BLOCKED"
	EstadoExit      Estado = "EXIT"
)

// PIDs de los procesos de arranque que KSM nunca escanea.
const (
	InitPID       = 1
	FileServerPID = 2
)

// Scannable indica si KSM puede recorrer un proceso en este estado: listo o bloqueado (dormido).
func (e Estado) Scannable() bool {
	return e == EstadoReady || e == EstadoBlocked
}

// Valid indica si el estado es uno de los conocidos.
func (e Estado) Valid() bool {
	switch e {
	case EstadoNew, EstadoReady, EstadoExecuting, EstadoBlocked, EstadoExit:
		return true
	}
	return false
}
