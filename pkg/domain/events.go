package domain

import (
	"context"
	"time"
)

// HandlerEvent describes one handler invocation inside a transition run.
type HandlerEvent struct {
	AgentID       string
	TransactionID string
	Trigger       Trigger
	Handler       string
	Start         time.Time
	Duration      time.Duration
	Err           error
}

// PhaseChangeEvent describes a phase edge taken by a run.
type PhaseChangeEvent struct {
	AgentID       string
	TransactionID string
	From          Phase
	To            Phase
}

// DispatchEvent describes one outbound protocol send.
type DispatchEvent struct {
	AgentID  string
	Action   Action
	Target   string
	Duration time.Duration
	Err      error
}

// LifecycleHooks receives notifications as the engine and dispatcher
// work. All fields are optional; nil hooks cost nothing. Hook functions
// run synchronously on the calling goroutine and must return quickly.
type LifecycleHooks struct {
	OnHandlerStart  func(ctx context.Context, ev HandlerEvent)
	OnHandlerFinish func(ctx context.Context, ev HandlerEvent)
	OnPhaseChange   func(ctx context.Context, ev PhaseChangeEvent)
	OnDispatch      func(ctx context.Context, ev DispatchEvent)
}

// HandlerStart invokes the OnHandlerStart hook when set.
func (h *LifecycleHooks) HandlerStart(ctx context.Context, ev HandlerEvent) {
	if h != nil && h.OnHandlerStart != nil {
		h.OnHandlerStart(ctx, ev)
	}
}

// HandlerFinish invokes the OnHandlerFinish hook when set.
func (h *LifecycleHooks) HandlerFinish(ctx context.Context, ev HandlerEvent) {
	if h != nil && h.OnHandlerFinish != nil {
		h.OnHandlerFinish(ctx, ev)
	}
}

// PhaseChange invokes the OnPhaseChange hook when set.
func (h *LifecycleHooks) PhaseChange(ctx context.Context, ev PhaseChangeEvent) {
	if h != nil && h.OnPhaseChange != nil {
		h.OnPhaseChange(ctx, ev)
	}
}

// Dispatch invokes the OnDispatch hook when set.
func (h *LifecycleHooks) Dispatch(ctx context.Context, ev DispatchEvent) {
	if h != nil && h.OnDispatch != nil {
		h.OnDispatch(ctx, ev)
	}
}

// MergeHooks combines hook sets into one that fans each event out to
// every member in order. Hosts use it to observe the same run with,
// say, metrics and custom auditing at once.
func MergeHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnHandlerStart: func(ctx context.Context, ev HandlerEvent) {
			for i := range sets {
				sets[i].HandlerStart(ctx, ev)
			}
		},
		OnHandlerFinish: func(ctx context.Context, ev HandlerEvent) {
			for i := range sets {
				sets[i].HandlerFinish(ctx, ev)
			}
		},
		OnPhaseChange: func(ctx context.Context, ev PhaseChangeEvent) {
			for i := range sets {
				sets[i].PhaseChange(ctx, ev)
			}
		},
		OnDispatch: func(ctx context.Context, ev DispatchEvent) {
			for i := range sets {
				sets[i].Dispatch(ctx, ev)
			}
		},
	}
}
