package utcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionAllowsSelfLoop(t *testing.T) {
	require.True(t, canTransition(StateEstablished, StateEstablished))
}

func TestCanTransitionHandshake(t *testing.T) {
	require.True(t, canTransition(StateClosed, StateSynSent))
	require.True(t, canTransition(StateClosed, StateSynReceived))
	require.True(t, canTransition(StateSynSent, StateEstablished))
	require.True(t, canTransition(StateSynReceived, StateEstablished))
}

func TestCanTransitionCloseWaitGoesToClosing(t *testing.T) {
	require.True(t, canTransition(StateCloseWait, StateClosing))
	require.False(t, canTransition(StateCloseWait, StateLastAck))
}

func TestCanTransitionRejectsIllegalEdges(t *testing.T) {
	require.False(t, canTransition(StateListen, StateEstablished))
	require.False(t, canTransition(StateTimeWait, StateEstablished))
	require.False(t, canTransition(StateClosed, StateEstablished))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "ESTABLISHED", StateEstablished.String())
	require.Equal(t, "CLOSE-WAIT", StateCloseWait.String())
	require.Equal(t, "UNKNOWN", State(99).String())
}
