package utcp

// State is one of the eleven states of the connection lifecycle.
type State int32

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateClosing
	StateLastAck
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN-SENT"
	case StateSynReceived:
		return "SYN-RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN-WAIT-1"
	case StateFinWait2:
		return "FIN-WAIT-2"
	case StateCloseWait:
		return "CLOSE-WAIT"
	case StateClosing:
		return "CLOSING"
	case StateLastAck:
		return "LAST-ACK"
	case StateTimeWait:
		return "TIME-WAIT"
	default:
		return "UNKNOWN"
	}
}

// legalNext holds, for every state, the set of states a connection is
// allowed to transition into directly. setState treats any other edge
// as an invariant violation.
var legalNext = map[State]map[State]bool{
	StateClosed:      {StateListen: true, StateSynSent: true, StateSynReceived: true},
	StateListen:      {StateSynReceived: true, StateClosed: true},
	StateSynSent:     {StateEstablished: true, StateClosed: true},
	StateSynReceived: {StateEstablished: true, StateFinWait1: true, StateClosed: true},
	StateEstablished: {StateCloseWait: true, StateFinWait1: true, StateClosed: true},
	StateFinWait1:    {StateClosing: true, StateFinWait2: true, StateTimeWait: true, StateClosed: true},
	StateFinWait2:    {StateTimeWait: true, StateClosed: true},
	StateCloseWait:   {StateClosing: true, StateClosed: true},
	StateClosing:     {StateTimeWait: true, StateClosed: true},
	StateLastAck:     {StateClosed: true},
	StateTimeWait:    {StateClosed: true},
}

// canTransition reports whether from->to is a legal lifecycle edge.
func canTransition(from, to State) bool {
	if from == to {
		return true
	}
	return legalNext[from][to]
}
