package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Execution is one (target, value, calldata) unit of an execution request.
// Batch ordering is significant: units run strictly in sequence.
type Execution struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// ExecutionResult captures the outcome of one unit for callers that collect
// per-unit return data (the executor-initiated entry point).
type ExecutionResult struct {
	Success    bool
	ReturnData []byte
}
