package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/sideeffect"
)

// FallbackReply is shown whenever the completion endpoint cannot answer.
const FallbackReply = "I'm having trouble responding right now, but please know that God hears you. " +
	"\"Cast all your anxiety on Him because He cares for you.\" (1 Peter 5:7). Please try again in a moment."

// Assistant asks the external completion function for a pastoral reply.
type Assistant struct {
	invoker sideeffect.Invoker
	log     zerolog.Logger
}

func NewAssistant(invoker sideeffect.Invoker) *Assistant {
	return &Assistant{invoker: invoker, log: logger.With("assistant")}
}

// Reply returns the completion for message. Failures and empty replies yield
// FallbackReply instead of an error; only blank input is rejected.
func (a *Assistant) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", validationErr("message is empty")
	}

	var resp sideeffect.PastoralReplyResponse
	err := a.invoker.Invoke(ctx, sideeffect.FunctionPastoralReply, sideeffect.PastoralReplyRequest{Message: message}, &resp)
	if err != nil {
		a.log.Warn().Err(err).Msg("completion failed, using fallback reply")
		return FallbackReply, nil
	}
	if strings.TrimSpace(resp.Reply) == "" {
		return FallbackReply, nil
	}
	return resp.Reply, nil
}
