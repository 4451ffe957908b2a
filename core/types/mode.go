// Package types defines the data model shared by the arbor account kernel:
// execution mode descriptors, execution triples, user operations, module
// categories and validation verdicts.
package types

// CallType selects the dispatch shape of an execution request.
type CallType byte

// ExecType selects the failure policy applied to each execution unit.
type ExecType byte

const (
	// CallTypeSingle executes one (target, value, calldata) triple.
	CallTypeSingle CallType = 0x00
	// CallTypeBatch executes an ordered sequence of triples.
	CallTypeBatch CallType = 0x01
	// CallTypeDelegate runs the payload against a delegate implementation.
	CallTypeDelegate CallType = 0xff
)

const (
	// ExecTypeDefault aborts the whole request on the first failing unit.
	ExecTypeDefault ExecType = 0x00
	// ExecTypeTry reports a failing unit and continues with the rest.
	ExecTypeTry ExecType = 0x01
)

// ExecMode is the compact 32-byte descriptor attached to every execution
// request. Layout: callType(1) | execType(1) | unused(4) | selector(4) |
// payload(22). Decoding is pure and total; unknown values survive decoding
// and must be rejected by the dispatcher.
type ExecMode [32]byte

// EncodeMode builds a descriptor from a call type and an exec type, leaving
// the selector and payload regions zeroed.
func EncodeMode(ct CallType, et ExecType) ExecMode {
	var m ExecMode
	m[0] = byte(ct)
	m[1] = byte(et)
	return m
}

// CallType returns the call-type byte of the descriptor.
func (m ExecMode) CallType() CallType { return CallType(m[0]) }

// ExecType returns the exec-type byte of the descriptor.
func (m ExecMode) ExecType() ExecType { return ExecType(m[1]) }

// Selector returns the 4-byte mode selector region.
func (m ExecMode) Selector() [4]byte {
	var s [4]byte
	copy(s[:], m[6:10])
	return s
}

// Payload returns the 22-byte mode payload region.
func (m ExecMode) Payload() [22]byte {
	var p [22]byte
	copy(p[:], m[10:32])
	return p
}

// KnownCallType reports whether ct is one of the three supported call types.
func KnownCallType(ct CallType) bool {
	switch ct {
	case CallTypeSingle, CallTypeBatch, CallTypeDelegate:
		return true
	}
	return false
}

// KnownExecType reports whether et is one of the two supported exec types.
func KnownExecType(et ExecType) bool {
	switch et {
	case ExecTypeDefault, ExecTypeTry:
		return true
	}
	return false
}

// Supported reports whether the descriptor names a (callType, execType)
// combination the kernel implements. The selector and payload regions do not
// participate in capability advertisement.
func (m ExecMode) Supported() bool {
	return KnownCallType(m.CallType()) && KnownExecType(m.ExecType())
}
