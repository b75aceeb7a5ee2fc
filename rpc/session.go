package rpc

import "context"

// SessionRpc groups the methods scoped to one session. Every request carries
// the session ID; callers never set it.
type SessionRpc struct {
	Model      *ModelApi
	Mode       *ModeApi
	Plan       *PlanApi
	Workspace  *WorkspaceApi
	Fleet      *FleetApi
	Agent      *AgentApi
	Compaction *CompactionApi
}

type sessionApi struct {
	caller    Caller
	sessionID string
}

// NewSessionRpc binds the session-scoped API to c and sessionID.
func NewSessionRpc(c Caller, sessionID string) *SessionRpc {
	s := sessionApi{caller: c, sessionID: sessionID}
	return &SessionRpc{
		Model:      &ModelApi{s},
		Mode:       &ModeApi{s},
		Plan:       &PlanApi{s},
		Workspace:  &WorkspaceApi{s},
		Fleet:      &FleetApi{s},
		Agent:      &AgentApi{s},
		Compaction: &CompactionApi{s},
	}
}

type ModelApi struct{ sessionApi }

func (a *ModelApi) GetCurrent(ctx context.Context) (*SessionModelGetCurrentResult, error) {
	return invokeSession[SessionModelGetCurrentResult](ctx, a.caller, a.sessionID, "session.model.getCurrent", nil)
}

func (a *ModelApi) SwitchTo(ctx context.Context, params *SessionModelSwitchToParams) (*SessionModelSwitchToResult, error) {
	return invokeSession[SessionModelSwitchToResult](ctx, a.caller, a.sessionID, "session.model.switchTo", params)
}

type ModeApi struct{ sessionApi }

func (a *ModeApi) Get(ctx context.Context) (*SessionModeGetResult, error) {
	return invokeSession[SessionModeGetResult](ctx, a.caller, a.sessionID, "session.mode.get", nil)
}

func (a *ModeApi) Set(ctx context.Context, params *SessionModeSetParams) (*SessionModeSetResult, error) {
	return invokeSession[SessionModeSetResult](ctx, a.caller, a.sessionID, "session.mode.set", params)
}

type PlanApi struct{ sessionApi }

func (a *PlanApi) Read(ctx context.Context) (*SessionPlanReadResult, error) {
	return invokeSession[SessionPlanReadResult](ctx, a.caller, a.sessionID, "session.plan.read", nil)
}

func (a *PlanApi) Update(ctx context.Context, params *SessionPlanUpdateParams) (*SessionPlanUpdateResult, error) {
	return invokeSession[SessionPlanUpdateResult](ctx, a.caller, a.sessionID, "session.plan.update", params)
}

func (a *PlanApi) Delete(ctx context.Context) (*SessionPlanDeleteResult, error) {
	return invokeSession[SessionPlanDeleteResult](ctx, a.caller, a.sessionID, "session.plan.delete", nil)
}

type WorkspaceApi struct{ sessionApi }

func (a *WorkspaceApi) ListFiles(ctx context.Context) (*SessionWorkspaceListFilesResult, error) {
	return invokeSession[SessionWorkspaceListFilesResult](ctx, a.caller, a.sessionID, "session.workspace.listFiles", nil)
}

func (a *WorkspaceApi) ReadFile(ctx context.Context, params *SessionWorkspaceReadFileParams) (*SessionWorkspaceReadFileResult, error) {
	return invokeSession[SessionWorkspaceReadFileResult](ctx, a.caller, a.sessionID, "session.workspace.readFile", params)
}

func (a *WorkspaceApi) CreateFile(ctx context.Context, params *SessionWorkspaceCreateFileParams) (*SessionWorkspaceCreateFileResult, error) {
	return invokeSession[SessionWorkspaceCreateFileResult](ctx, a.caller, a.sessionID, "session.workspace.createFile", params)
}

type FleetApi struct{ sessionApi }

func (a *FleetApi) Start(ctx context.Context, params *SessionFleetStartParams) (*SessionFleetStartResult, error) {
	return invokeSession[SessionFleetStartResult](ctx, a.caller, a.sessionID, "session.fleet.start", params)
}

type AgentApi struct{ sessionApi }

func (a *AgentApi) List(ctx context.Context) (*SessionAgentListResult, error) {
	return invokeSession[SessionAgentListResult](ctx, a.caller, a.sessionID, "session.agent.list", nil)
}

func (a *AgentApi) GetCurrent(ctx context.Context) (*SessionAgentGetCurrentResult, error) {
	return invokeSession[SessionAgentGetCurrentResult](ctx, a.caller, a.sessionID, "session.agent.getCurrent", nil)
}

func (a *AgentApi) Select(ctx context.Context, params *SessionAgentSelectParams) (*SessionAgentSelectResult, error) {
	return invokeSession[SessionAgentSelectResult](ctx, a.caller, a.sessionID, "session.agent.select", params)
}

func (a *AgentApi) Deselect(ctx context.Context) (*SessionAgentDeselectResult, error) {
	return invokeSession[SessionAgentDeselectResult](ctx, a.caller, a.sessionID, "session.agent.deselect", nil)
}

type CompactionApi struct{ sessionApi }

func (a *CompactionApi) Compact(ctx context.Context) (*SessionCompactionCompactResult, error) {
	return invokeSession[SessionCompactionCompactResult](ctx, a.caller, a.sessionID, "session.compaction.compact", nil)
}
