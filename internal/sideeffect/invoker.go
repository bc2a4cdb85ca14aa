package sideeffect

import (
	"context"
	"errors"
)

// Function names understood by the functions endpoint.
const (
	FunctionSendCommunityInvite = "send-community-invite"
	FunctionPastoralReply       = "pastoral-reply"
)

// ErrNoResult is returned by invokers that cannot produce a response body.
var ErrNoResult = errors.New("sideeffect: invoker returns no result")

// Invoker runs a named side-effecting function. payload is encoded as JSON;
// when out is non-nil the response is decoded into it.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload any, out any) error
}

// CommunityInvitePayload is the body of FunctionSendCommunityInvite.
type CommunityInvitePayload struct {
	Email       string `json:"email"`
	InviteToken string `json:"inviteToken"`
}

// PastoralReplyRequest is the body of FunctionPastoralReply.
type PastoralReplyRequest struct {
	Message string `json:"message"`
}

// PastoralReplyResponse is the result of FunctionPastoralReply.
type PastoralReplyResponse struct {
	Reply string `json:"reply"`
}
