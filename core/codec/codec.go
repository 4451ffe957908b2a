// Package codec packs and unpacks execution request payloads. The formats
// are deterministic byte layouts, not a general-purpose serialization:
//
//	single:   target(20) | value(32) | calldata(rest)
//	batch:    count(4)   | N * ( target(20) | value(32) | len(4) | calldata )
//	delegate: target(20) | payload(rest)
//
// All integers are big-endian. Decoding rejects truncated input.
package codec

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/types"
)

var (
	// ErrTruncatedPayload is returned when a payload is shorter than its
	// declared layout.
	ErrTruncatedPayload = errors.New("codec: truncated execution payload")
	// ErrValueOverflow is returned when a unit's value does not fit 256 bits.
	ErrValueOverflow = errors.New("codec: value exceeds 256 bits")
)

const (
	addrLen   = common.AddressLength
	valueLen  = 32
	singleMin = addrLen + valueLen
)

// EncodeSingle packs one execution triple.
func EncodeSingle(e types.Execution) ([]byte, error) {
	out := make([]byte, 0, singleMin+len(e.CallData))
	out = append(out, e.Target.Bytes()...)
	v, err := valueBytes(e.Value)
	if err != nil {
		return nil, err
	}
	out = append(out, v...)
	return append(out, e.CallData...), nil
}

// DecodeSingle unpacks one execution triple.
func DecodeSingle(payload []byte) (types.Execution, error) {
	if len(payload) < singleMin {
		return types.Execution{}, ErrTruncatedPayload
	}
	return types.Execution{
		Target:   common.BytesToAddress(payload[:addrLen]),
		Value:    new(big.Int).SetBytes(payload[addrLen:singleMin]),
		CallData: payload[singleMin:],
	}, nil
}

// EncodeBatch packs an ordered sequence of execution triples.
func EncodeBatch(execs []types.Execution) ([]byte, error) {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(execs)))
	for _, e := range execs {
		out = append(out, e.Target.Bytes()...)
		v, err := valueBytes(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(e.CallData)))
		out = append(out, n[:]...)
		out = append(out, e.CallData...)
	}
	return out, nil
}

// DecodeBatch unpacks an ordered sequence of execution triples, preserving
// the supplied order.
func DecodeBatch(payload []byte) ([]types.Execution, error) {
	if len(payload) < 4 {
		return nil, ErrTruncatedPayload
	}
	count := binary.BigEndian.Uint32(payload[:4])
	rest := payload[4:]
	execs := make([]types.Execution, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < singleMin+4 {
			return nil, ErrTruncatedPayload
		}
		target := common.BytesToAddress(rest[:addrLen])
		value := new(big.Int).SetBytes(rest[addrLen:singleMin])
		n := binary.BigEndian.Uint32(rest[singleMin : singleMin+4])
		rest = rest[singleMin+4:]
		if uint32(len(rest)) < n {
			return nil, ErrTruncatedPayload
		}
		execs = append(execs, types.Execution{
			Target:   target,
			Value:    value,
			CallData: rest[:n],
		})
		rest = rest[n:]
	}
	return execs, nil
}

// EncodeDelegate packs a delegate target and its payload.
func EncodeDelegate(target common.Address, payload []byte) []byte {
	out := make([]byte, 0, addrLen+len(payload))
	out = append(out, target.Bytes()...)
	return append(out, payload...)
}

// DecodeDelegate splits a delegated payload into the 20-byte delegate
// address prefix and the remaining calldata.
func DecodeDelegate(payload []byte) (common.Address, []byte, error) {
	if len(payload) < addrLen {
		return common.Address{}, nil, ErrTruncatedPayload
	}
	return common.BytesToAddress(payload[:addrLen]), payload[addrLen:], nil
}

func valueBytes(v *big.Int) ([]byte, error) {
	if v == nil {
		return make([]byte, valueLen), nil
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, ErrValueOverflow
	}
	out := make([]byte, valueLen)
	v.FillBytes(out)
	return out, nil
}
