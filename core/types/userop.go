package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// UserOperation is the coordinator-submitted request describing an action
// the account should authorize and execute.
type UserOperation struct {
	Sender common.Address `json:"sender"`

	// Nonce is a 256-bit sequence value. The top 160 bits select the
	// validator module; the low 96 bits are the replay counter.
	Nonce *big.Int `json:"nonce"`

	CallData []byte `json:"callData"`

	CallGasLimit         uint64   `json:"callGasLimit"`
	VerificationGasLimit uint64   `json:"verificationGasLimit"`
	PreVerificationGas   uint64   `json:"preVerificationGas"`
	MaxFeePerGas         *big.Int `json:"maxFeePerGas"`

	Signature []byte `json:"signature"`
}

// ValidatorFromNonce extracts the candidate validator address encoded in the
// high-order 160 bits of the nonce.
func (op *UserOperation) ValidatorFromNonce() common.Address {
	if op.Nonce == nil {
		return common.Address{}
	}
	key := new(big.Int).Rsh(op.Nonce, 96)
	return common.BigToAddress(key)
}

// SequenceFromNonce returns the low 96-bit replay counter.
func (op *UserOperation) SequenceFromNonce() *big.Int {
	if op.Nonce == nil {
		return new(big.Int)
	}
	mask := new(big.Int).Lsh(big.NewInt(1), 96)
	mask.Sub(mask, big.NewInt(1))
	return new(big.Int).And(op.Nonce, mask)
}

// Hash commits to every authorization-relevant field of the operation. The
// signature itself is excluded.
func (op *UserOperation) Hash() common.Hash {
	packed := make([]byte, 0, 224)
	packed = append(packed, op.Sender.Bytes()...)
	packed = append(packed, common.BigToHash(safeBig(op.Nonce)).Bytes()...)
	packed = append(packed, crypto.Keccak256(op.CallData)...)
	packed = append(packed, common.BigToHash(new(big.Int).SetUint64(op.CallGasLimit)).Bytes()...)
	packed = append(packed, common.BigToHash(new(big.Int).SetUint64(op.VerificationGasLimit)).Bytes()...)
	packed = append(packed, common.BigToHash(new(big.Int).SetUint64(op.PreVerificationGas)).Bytes()...)
	packed = append(packed, common.BigToHash(safeBig(op.MaxFeePerGas)).Bytes()...)
	return common.BytesToHash(crypto.Keccak256(packed))
}

// TotalGasLimit returns the gas ceiling used for prefund computation.
func (op *UserOperation) TotalGasLimit() uint64 {
	return op.CallGasLimit + op.VerificationGasLimit + op.PreVerificationGas
}

// RequiredPrefund is the maximum resource cost the coordinator may charge
// for this operation.
func (op *UserOperation) RequiredPrefund() *big.Int {
	return new(big.Int).Mul(
		new(big.Int).SetUint64(op.TotalGasLimit()),
		safeBig(op.MaxFeePerGas),
	)
}

func safeBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
