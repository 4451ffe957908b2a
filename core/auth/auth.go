// Package auth defines the access predicates guarding the account kernel's
// privileged entry points. Callers are identified by address, never by
// ambient state; the kernel passes the submitting address explicitly.
package auth

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Policy answers whether a caller may reach a privileged surface.
type Policy interface {
	// CanExecute gates the coordinator-or-self execution entry.
	CanExecute(caller common.Address) bool
	// CanManageModules gates install and uninstall.
	CanManageModules(caller common.Address) bool
	// CanValidate gates the transaction-authorization surface.
	CanValidate(caller common.Address) bool
}

// CoordinatorPolicy is the default policy: the coordinator and the account
// itself may execute and manage modules; only the coordinator may request
// transaction authorization.
type CoordinatorPolicy struct {
	Coordinator common.Address
	Self        common.Address
}

func (p CoordinatorPolicy) CanExecute(caller common.Address) bool {
	return caller == p.Coordinator || caller == p.Self
}

func (p CoordinatorPolicy) CanManageModules(caller common.Address) bool {
	return caller == p.Coordinator || caller == p.Self
}

func (p CoordinatorPolicy) CanValidate(caller common.Address) bool {
	return caller == p.Coordinator
}

type contextKey int

const senderContextKey contextKey = iota

// ContextWithSender returns a context carrying the original submitting
// address, for collaborators that need it beyond the explicit argument
// (logging, gateways).
func ContextWithSender(ctx context.Context, sender common.Address) context.Context {
	return context.WithValue(ctx, senderContextKey, sender)
}

// SenderFromContext retrieves the submitting address, if any.
func SenderFromContext(ctx context.Context) (common.Address, bool) {
	s, ok := ctx.Value(senderContextKey).(common.Address)
	return s, ok
}
