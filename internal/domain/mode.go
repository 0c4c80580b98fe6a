package domain

import "fmt"

// SocketMode is the async socket pattern, as a tagged variant validated
// against allowed operations at configuration time.
type SocketMode int

const (
	ModePub SocketMode = iota
	ModeSub
	ModePush
	ModePull
	ModeReq
	ModeRep
)

// String returns the wire name of the mode.
func (m SocketMode) String() string {
	switch m {
	case ModePub:
		return "pub"
	case ModeSub:
		return "sub"
	case ModePush:
		return "push"
	case ModePull:
		return "pull"
	case ModeReq:
		return "req"
	case ModeRep:
		return "rep"
	default:
		return "unknown"
	}
}

// Valid reports whether the mode is one of the recognized variants.
func (m SocketMode) Valid() bool {
	return m >= ModePub && m <= ModeRep
}

// CanRecv reports whether the mode permits receiving inbound payloads.
func (m SocketMode) CanRecv() bool {
	return m == ModeSub || m == ModePull || m == ModeRep
}

// CanSend reports whether the mode permits sending outbound payloads.
func (m SocketMode) CanSend() bool {
	return m == ModePub || m == ModePush || m == ModeReq || m == ModeRep
}

// ParseSocketMode converts a configuration string into a SocketMode.
func ParseSocketMode(s string) (SocketMode, error) {
	switch s {
	case "pub", "publish":
		return ModePub, nil
	case "sub", "subscribe":
		return ModeSub, nil
	case "push":
		return ModePush, nil
	case "pull":
		return ModePull, nil
	case "req", "request":
		return ModeReq, nil
	case "rep", "reply":
		return ModeRep, nil
	default:
		return 0, fmt.Errorf("%w: unknown socket mode %q", ErrInvalidConfig, s)
	}
}

// Role selects which side of both transports the endpoint plays: the server
// binds the async socket and serves the sync listener, the client connects
// to both.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// Valid reports whether the role is recognized.
func (r Role) Valid() bool {
	return r == RoleServer || r == RoleClient
}
