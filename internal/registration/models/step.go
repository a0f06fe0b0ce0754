package models

import (
	"fmt"

	dErrors "onboarding/pkg/domain-errors"
)

// Step is the single active screen of a registration session.
type Step string

const (
	StepLoading  Step = "loading"
	StepPhone    Step = "phone"
	StepOtp      Step = "otp"
	StepForm     Step = "form"
	StepRedirect Step = "redirect"
	StepSuccess  Step = "success"
)

// transitions lists the legal edges of the session state machine. Reset is
// handled separately because it is legal from every step.
var transitions = map[Step][]Step{
	StepLoading:  {StepPhone, StepForm, StepSuccess},
	StepPhone:    {StepOtp, StepRedirect},
	StepOtp:      {StepForm},
	StepForm:     {StepSuccess},
	StepRedirect: {},
	StepSuccess:  {},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Step) CanTransitionTo(next Step) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsInteractive is false for the transient steps that accept no user events.
func (s Step) IsInteractive() bool {
	return s != StepLoading && s != StepRedirect
}

func (s Step) String() string {
	return string(s)
}

// Flow selects which gateway path the phone step and the identity fetch take.
type Flow string

const (
	// FlowStandard collects a phone, validates an OTP and shows the form.
	FlowStandard Flow = "standard"
	// FlowOneClick is the hosted one-click flow: a fetched identity completes
	// signup directly, otherwise the phone step hands off to the wallet.
	FlowOneClick Flow = "one_click"
	// FlowOneClickForm prefills the form from fetched credentials so the user
	// only confirms an address.
	FlowOneClickForm Flow = "one_click_form"
)

// ParseFlow validates a flow name, defaulting the empty string to standard.
func ParseFlow(s string) (Flow, error) {
	switch Flow(s) {
	case "":
		return FlowStandard, nil
	case FlowStandard, FlowOneClick, FlowOneClickForm:
		return Flow(s), nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown flow: %s", s))
	}
}

// UsesOneClickPhone reports whether the phone step posts to the one-click
// gateway instead of issuing an OTP.
func (f Flow) UsesOneClickPhone() bool {
	return f == FlowOneClick || f == FlowOneClickForm
}
