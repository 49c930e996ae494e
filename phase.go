package hxbus

import "context"

// Phase is a step of the request processing lifecycle.
type Phase int

const (
	PhaseRestoreView Phase = iota + 1
	PhaseApplyRequestValues
	PhaseInvokeApplication
	PhaseRenderResponse
)

func (p Phase) String() string {
	switch p {
	case PhaseRestoreView:
		return "restore-view"
	case PhaseApplyRequestValues:
		return "apply-request-values"
	case PhaseInvokeApplication:
		return "invoke-application"
	case PhaseRenderResponse:
		return "render-response"
	default:
		return "unknown"
	}
}

type phaseKey struct{}

// WithPhase returns a context carrying the current lifecycle phase.
func WithPhase(ctx context.Context, p Phase) context.Context {
	return context.WithValue(ctx, phaseKey{}, p)
}

// CurrentPhase returns the phase carried by ctx, or 0 if none.
func CurrentPhase(ctx context.Context) Phase {
	p, _ := ctx.Value(phaseKey{}).(Phase)
	return p
}
