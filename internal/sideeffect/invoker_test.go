package sideeffect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPInvokerPostsJSON(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody CommunityInvitePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL+"/", "secret", 0)
	err := inv.Invoke(context.Background(), FunctionSendCommunityInvite,
		CommunityInvitePayload{Email: "a@example.com", InviteToken: "tok"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/"+FunctionSendCommunityInvite, gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "tok", gotBody.InviteToken)
}

func TestHTTPInvokerDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PastoralReplyResponse{Reply: "peace be with you"})
	}))
	defer srv.Close()

	var out PastoralReplyResponse
	err := NewHTTPInvoker(srv.URL, "", 0).Invoke(context.Background(), FunctionPastoralReply, PastoralReplyRequest{Message: "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "peace be with you", out.Reply)
}

func TestHTTPInvokerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "mailer down")
	}))
	defer srv.Close()

	err := NewHTTPInvoker(srv.URL, "", 0).Invoke(context.Background(), FunctionSendCommunityInvite, CommunityInvitePayload{}, nil)
	assert.Error(t, err)
}

type fakeProducer struct {
	topic   string
	key     string
	payload []byte
}

func (p *fakeProducer) SendMessage(_ context.Context, topic string, key []byte, payload []byte) error {
	p.topic, p.key, p.payload = topic, string(key), payload
	return nil
}

func (p *fakeProducer) Close() {}

func TestKafkaInvoker(t *testing.T) {
	p := &fakeProducer{}
	inv := NewKafkaInvoker(p, "side-effects")

	err := inv.Invoke(context.Background(), FunctionSendCommunityInvite, CommunityInvitePayload{Email: "a@example.com", InviteToken: "tok"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "side-effects", p.topic)
	assert.Equal(t, FunctionSendCommunityInvite, p.key)

	var call Call
	require.NoError(t, json.Unmarshal(p.payload, &call))
	assert.Equal(t, FunctionSendCommunityInvite, call.Function)
	assert.JSONEq(t, `{"email":"a@example.com","inviteToken":"tok"}`, string(call.Payload))

	var out PastoralReplyResponse
	err = inv.Invoke(context.Background(), FunctionPastoralReply, PastoralReplyRequest{}, &out)
	assert.ErrorIs(t, err, ErrNoResult)
}

type recordingInvoker struct{ calls []string }

func (r *recordingInvoker) Invoke(_ context.Context, function string, _ any, _ any) error {
	r.calls = append(r.calls, function)
	return nil
}

func TestRouter(t *testing.T) {
	ff, rr := &recordingInvoker{}, &recordingInvoker{}
	router := Router{FireAndForget: ff, RequestReply: rr}

	require.NoError(t, router.Invoke(context.Background(), FunctionSendCommunityInvite, nil, nil))
	var out PastoralReplyResponse
	require.NoError(t, router.Invoke(context.Background(), FunctionPastoralReply, nil, &out))

	assert.Equal(t, []string{FunctionSendCommunityInvite}, ff.calls)
	assert.Equal(t, []string{FunctionPastoralReply}, rr.calls)
}
