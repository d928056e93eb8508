package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"bosebridge/internal/bose"
)

func push(topic string, body string) bose.Message {
	return bose.Message{
		Header: bose.Header{Resource: topic, Method: "NOTIFY"},
		Body:   json.RawMessage(body),
	}
}

func TestRouter_DispatchToRegisteredTopic(t *testing.T) {
	r := New(zap.NewNop())

	var got []string
	r.Register(bose.TopicAudioVolume, "volume", func(body json.RawMessage) {
		got = append(got, string(body))
	})

	r.Dispatch(push(bose.TopicAudioVolume, `{"value":30}`))
	r.Dispatch(push(bose.TopicNowPlaying, `{}`)) // no handler, silently dropped

	assert.Equal(t, []string{`{"value":30}`}, got)
}

func TestRouter_MultipleHandlersShareTopic(t *testing.T) {
	r := New(zap.NewNop())

	count := 0
	r.Register(bose.TopicNowPlaying, "media", func(json.RawMessage) { count++ })
	r.Register(bose.TopicNowPlaying, "source-select", func(json.RawMessage) { count++ })

	r.Dispatch(push(bose.TopicNowPlaying, `{}`))
	assert.Equal(t, 2, count)
}

func TestRouter_PanicDoesNotStopDispatch(t *testing.T) {
	r := New(zap.NewNop())

	var survived bool
	r.Register(bose.TopicNowPlaying, "bad", func(json.RawMessage) {
		panic("boom")
	})
	r.Register(bose.TopicNowPlaying, "good", func(json.RawMessage) {
		survived = true
	})

	assert.NotPanics(t, func() {
		r.Dispatch(push(bose.TopicNowPlaying, `{}`))
	})
	assert.True(t, survived)
}

func TestRouter_IgnoresMessageWithoutTopic(t *testing.T) {
	r := New(zap.NewNop())

	called := false
	r.Register(bose.TopicNowPlaying, "media", func(json.RawMessage) { called = true })

	r.Dispatch(bose.Message{Header: bose.Header{Method: "NOTIFY"}})
	assert.False(t, called)
}

func TestRouter_Topics(t *testing.T) {
	r := New(zap.NewNop())
	r.Register(bose.TopicNowPlaying, "a", func(json.RawMessage) {})
	r.Register(bose.TopicAudioVolume, "b", func(json.RawMessage) {})
	r.Register(bose.TopicAudioVolume, "c", func(json.RawMessage) {})

	assert.ElementsMatch(t, []string{bose.TopicNowPlaying, bose.TopicAudioVolume}, r.Topics())
}
