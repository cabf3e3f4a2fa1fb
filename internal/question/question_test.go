package question

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/runtime/internal/bus"
	"github.com/stretchr/testify/require"
)

func TestAskAnswer(t *testing.T) {
	b := NewBroker(bus.New())
	var id string
	b.bus.SubscribeAll(func(ev bus.Event) {
		if ev.Type == bus.EventQuestionAsked {
			id = ev.Data.(Question).ID
		}
	})

	done := make(chan [][]string, 1)
	errCh := make(chan error, 1)
	go func() {
		answers, err := b.Ask(context.Background(), Question{SessionID: "ses_1", Prompt: "continue?", Choices: [][]string{{"yes", "no"}}})
		done <- answers
		errCh <- err
	}()

	require.Eventually(t, func() bool { return id != "" }, time.Second, time.Millisecond)
	require.True(t, b.Answer(id, [][]string{{"yes"}}))
	require.NoError(t, <-errCh)
	require.Equal(t, [][]string{{"yes"}}, <-done)
}

func TestAskReject(t *testing.T) {
	b := NewBroker(bus.New())
	var id string
	b.bus.SubscribeAll(func(ev bus.Event) {
		if ev.Type == bus.EventQuestionAsked {
			id = ev.Data.(Question).ID
		}
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Ask(context.Background(), Question{SessionID: "ses_1", Prompt: "continue?"})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return id != "" }, time.Second, time.Millisecond)
	require.True(t, b.Reject(id))
	err := <-errCh
	require.Error(t, err)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
}
