package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devotion-go/internal/sideeffect"
)

func TestAssistantReply(t *testing.T) {
	tests := []struct {
		name    string
		invoker *fakeInvoker
		want    string
	}{
		{name: "completion", invoker: &fakeInvoker{reply: "Be still, and know."}, want: "Be still, and know."},
		{name: "invoker failure", invoker: &fakeInvoker{err: errBoom}, want: FallbackReply},
		{name: "empty completion", invoker: &fakeInvoker{reply: "  "}, want: FallbackReply},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewAssistant(tc.invoker).Reply(context.Background(), "I feel anxious")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			require.Len(t, tc.invoker.calls, 1)
			assert.Equal(t, sideeffect.FunctionPastoralReply, tc.invoker.calls[0].Function)
		})
	}

	inv := &fakeInvoker{}
	_, err := NewAssistant(inv).Reply(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, inv.calls)
}
