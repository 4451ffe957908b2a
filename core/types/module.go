package types

import "fmt"

// ModuleType identifies the category a module is installed under. Categories
// are independent: the same address may be installed as an executor and as a
// hook at the same time, but at most once per category.
type ModuleType uint8

const (
	ModuleTypeValidator ModuleType = 1
	ModuleTypeExecutor  ModuleType = 2
	ModuleTypeFallback  ModuleType = 3
	ModuleTypeHook      ModuleType = 4

	// Pre-validation hooks rewrite the (digest, signature) pair before a
	// validator sees it. There is one category per authorization surface.
	ModuleTypePreValidationHookSig ModuleType = 8
	ModuleTypePreValidationHookOp  ModuleType = 9
)

// KnownModuleType reports whether mt belongs to the closed category set.
func KnownModuleType(mt ModuleType) bool {
	switch mt {
	case ModuleTypeValidator, ModuleTypeExecutor, ModuleTypeFallback,
		ModuleTypeHook, ModuleTypePreValidationHookSig, ModuleTypePreValidationHookOp:
		return true
	}
	return false
}

func (mt ModuleType) String() string {
	switch mt {
	case ModuleTypeValidator:
		return "validator"
	case ModuleTypeExecutor:
		return "executor"
	case ModuleTypeFallback:
		return "fallback"
	case ModuleTypeHook:
		return "hook"
	case ModuleTypePreValidationHookSig:
		return "prevalidation-hook-sig"
	case ModuleTypePreValidationHookOp:
		return "prevalidation-hook-op"
	}
	return fmt.Sprintf("moduletype(%d)", uint8(mt))
}
