package models

type PIDRequest struct {
	PID int `json:"pid"`
}

type PIDResponse struct {
	PID int `json:"pid"`
}

type ProcessRequest struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type StateRequest struct {
	PID   int    `json:"pid"`
	State Estado `json:"state"`
}

type GrowRequest struct {
	PID   int `json:"pid"`
	Delta int `json:"delta"`
}

type GrowResponse struct {
	Size int `json:"size"`
}

type WriteRequest struct {
	PID     int      `json:"pid"`
	Address VirtAddr `json:"address"`
	Data    []byte   `json:"data"`
}

type ReadRequest struct {
	PID     int      `json:"pid"`
	Address VirtAddr `json:"address"`
	Size    int      `json:"size"`
}

type ReadResponse struct {
	Data []byte `json:"data"`
}

type PTERequest struct {
	PID     int      `json:"pid"`
	Address VirtAddr `json:"address"`
}

type PTEResponse struct {
	PA          PhysAddr `json:"pa"`
	Permissions string   `json:"permissions"`
}

type DumpResponse struct {
	Path string `json:"path"`
}

// KsmRequest es el pedido de la syscall ksm. Las direcciones, si vienen, son del espacio del
// proceso que llama y reciben los contadores como int32 little-endian.
type KsmRequest struct {
	PID         int       `json:"pid"`
	ScannedAddr *VirtAddr `json:"scanned_addr,omitempty"`
	MergedAddr  *VirtAddr `json:"merged_addr,omitempty"`
}

type KsmResponse struct {
	Scanned int `json:"scanned"`
	Merged  int `json:"merged"`
	FreeMem int `json:"freemem"`
}

// ReverseMappingInfo, NodeInfo y NodesResponse son la vista de depuración del registro de KSM.
type ReverseMappingInfo struct {
	PID int      `json:"pid"`
	VA  VirtAddr `json:"va"`
}

type NodeInfo struct {
	PA          PhysAddr             `json:"pa"`
	RefCount    int                  `json:"refcnt"`
	Hash        uint64               `json:"hash"`
	Zero        bool                 `json:"zero,omitempty"`
	Reverse     []ReverseMappingInfo `json:"reverse,omitempty"`
	Permissions string               `json:"permissions,omitempty"`
}

type NodesResponse struct {
	Stable   []NodeInfo `json:"stable"`
	Unstable []NodeInfo `json:"unstable"`
}
