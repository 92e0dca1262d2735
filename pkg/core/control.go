package core

// ControlType says who drives a seat.
type ControlType int

// Ordinal order matches the values clients send over the wire.
const (
	Closed ControlType = iota
	CpuEasy
	Cpu
	CpuUltra
	CpuMega
	Network
	NetworkUnassigned
	Human
	NetworkCpuEasy
	NetworkCpu
	NetworkCpuUltra
	NetworkCpuMega
)

var controlNames = map[ControlType]string{
	Closed:            "closed",
	CpuEasy:           "cpu-easy",
	Cpu:               "cpu",
	CpuUltra:          "cpu-ultra",
	CpuMega:           "cpu-mega",
	Network:           "network",
	NetworkUnassigned: "network-unassigned",
	Human:             "human",
	NetworkCpuEasy:    "network-cpu-easy",
	NetworkCpu:        "network-cpu",
	NetworkCpuUltra:   "network-cpu-ultra",
	NetworkCpuMega:    "network-cpu-mega",
}

func (c ControlType) String() string {
	if s, ok := controlNames[c]; ok {
		return s
	}
	return "unknown"
}

// ParseControlType maps a name such as "cpu-ultra" back to its type.
func ParseControlType(name string) (ControlType, bool) {
	for c, n := range controlNames {
		if n == name {
			return c, true
		}
	}
	return Closed, false
}

// Valid reports whether c is a known control type.
func (c ControlType) Valid() bool {
	_, ok := controlNames[c]
	return ok
}

// IsCPU is true for local and network-hosted AI tiers.
func (c ControlType) IsCPU() bool {
	switch c {
	case CpuEasy, Cpu, CpuUltra, CpuMega,
		NetworkCpuEasy, NetworkCpu, NetworkCpuUltra, NetworkCpuMega:
		return true
	}
	return false
}

// IsNetwork is true for seats that hold (or wait for) a remote connection.
func (c ControlType) IsNetwork() bool {
	return c == Network || c == NetworkUnassigned
}

// IsNetworkCPU is true for AI seats simulated by a remote peer.
func (c ControlType) IsNetworkCPU() bool {
	switch c {
	case NetworkCpuEasy, NetworkCpu, NetworkCpuUltra, NetworkCpuMega:
		return true
	}
	return false
}

// PlayerStatus is the readiness a remote player reports for its seat.
type PlayerStatus int

const (
	StatusSetup PlayerStatus = iota
	StatusNotReady
	StatusReady
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusNotReady:
		return "not-ready"
	case StatusReady:
		return "ready"
	default:
		return "setup"
	}
}
