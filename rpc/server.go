package rpc

import "context"

// ServerRpc groups the methods that are not scoped to a session.
type ServerRpc struct {
	caller Caller

	Models  *ModelsApi
	Tools   *ToolsApi
	Account *AccountApi
}

// NewServerRpc binds the server-scoped API to c.
func NewServerRpc(c Caller) *ServerRpc {
	return &ServerRpc{
		caller:  c,
		Models:  &ModelsApi{caller: c},
		Tools:   &ToolsApi{caller: c},
		Account: &AccountApi{caller: c},
	}
}

func (a *ServerRpc) Ping(ctx context.Context, params *PingParams) (*PingResult, error) {
	return invoke[PingResult](ctx, a.caller, "ping", params)
}

type ModelsApi struct{ caller Caller }

func (a *ModelsApi) List(ctx context.Context) (*ModelsListResult, error) {
	return invoke[ModelsListResult](ctx, a.caller, "models.list", nil)
}

type ToolsApi struct{ caller Caller }

func (a *ToolsApi) List(ctx context.Context, params *ToolsListParams) (*ToolsListResult, error) {
	return invoke[ToolsListResult](ctx, a.caller, "tools.list", params)
}

type AccountApi struct{ caller Caller }

func (a *AccountApi) GetQuota(ctx context.Context) (*AccountGetQuotaResult, error) {
	return invoke[AccountGetQuotaResult](ctx, a.caller, "account.getQuota", nil)
}
