package account

import (
	"github.com/ethereum/go-ethereum/common"

	"arbor/core/types"
)

// Topics the account kernel publishes on.
const (
	TopicModuleInstalled   = "account.module.installed"
	TopicModuleUninstalled = "account.module.uninstalled"
	TopicTryExecuteFailed  = "account.execute.try_failed"
	TopicRedelegated       = "account.redelegated"
)

// ModuleInstalledEvent is published after a successful install.
type ModuleInstalledEvent struct {
	ModuleType types.ModuleType
	Address    common.Address
}

func (ModuleInstalledEvent) Topic() string { return TopicModuleInstalled }

// ModuleUninstalledEvent is published after a successful uninstall.
type ModuleUninstalledEvent struct {
	ModuleType types.ModuleType
	Address    common.Address
}

func (ModuleUninstalledEvent) Topic() string { return TopicModuleUninstalled }

// TryExecuteFailedEvent reports one failed unit of a try-mode request. The
// index identifies the unit within its batch; single and delegated requests
// use index zero.
type TryExecuteFailedEvent struct {
	Index      int
	ReturnData []byte
}

func (TryExecuteFailedEvent) Topic() string { return TopicTryExecuteFailed }

// RedelegatedEvent reports the outcome of a re-delegation purge. Failures
// counts modules whose uninstall callback failed; those modules are removed
// from the registry regardless.
type RedelegatedEvent struct {
	Implementation common.Hash
	Purged         int
	Failures       int
}

func (RedelegatedEvent) Topic() string { return TopicRedelegated }
