package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeviceFlow tracks one interactive device authorization attempt.
type DeviceFlow struct {
	ID         string
	State      DeviceFlowState
	Grant      DeviceGrant
	StartedAt  time.Time
	FinishedAt time.Time
	History    []DeviceFlowState
}

func NewDeviceFlow(now time.Time) *DeviceFlow {
	return &DeviceFlow{
		ID:        uuid.NewString(),
		State:     DeviceFlowStateIdle,
		StartedAt: now,
		History:   []DeviceFlowState{DeviceFlowStateIdle},
	}
}

// Await records the issued grant and moves the flow to awaiting authorization.
func (f *DeviceFlow) Await(grant DeviceGrant) error {
	if f == nil {
		return fmt.Errorf("core: device flow is nil")
	}
	if f.State != DeviceFlowStateIdle {
		return fmt.Errorf("core: device flow cannot await from state %q", f.State)
	}
	f.Grant = grant
	f.transition(DeviceFlowStateAwaitingUserAuthorization)
	return nil
}

// Finish moves the flow to its terminal state based on the poll result.
func (f *DeviceFlow) Finish(now time.Time, err error) (DeviceFlowState, error) {
	if f == nil {
		return "", fmt.Errorf("core: device flow is nil")
	}
	if f.State.Terminal() {
		return f.State, fmt.Errorf("core: device flow already finished in state %q", f.State)
	}
	next := DeviceFlowStateAuthorized
	if err != nil {
		next = DeviceFlowStateForError(err)
	}
	if f.State == DeviceFlowStateIdle && next == DeviceFlowStateAuthorized {
		return f.State, fmt.Errorf("core: device flow cannot authorize before a grant is issued")
	}
	f.FinishedAt = now
	f.transition(next)
	return next, nil
}

func (f *DeviceFlow) transition(next DeviceFlowState) {
	f.State = next
	f.History = append(f.History, next)
}

// DeviceFlowStateForError maps a device flow failure to its terminal state.
func DeviceFlowStateForError(err error) DeviceFlowState {
	switch {
	case err == nil:
		return DeviceFlowStateAuthorized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), IsTextCode(err, ErrorAuthCancelled):
		return DeviceFlowStateCancelled
	case IsTextCode(err, ErrorAuthDenied):
		return DeviceFlowStateDenied
	case IsTextCode(err, ErrorAuthExpired):
		return DeviceFlowStateExpired
	default:
		return DeviceFlowStateNetworkError
	}
}
