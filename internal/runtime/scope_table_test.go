package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"firestige.xyz/visionflow/internal/compiler"
)

func TestScopeTable_DrainFiresWaiterOnLastLeave(t *testing.T) {
	tab := newScopeTable()
	scope := compiler.ScopeID{Component: "split", Channel: ""}

	tab.enter(scope, ",")
	tab.enter(scope, ",")
	tab.enter(scope, ",")
	require.Equal(t, 1, tab.size())

	fired := false
	tab.onDrain(scope, ",", func() { fired = true })
	require.False(t, fired, "onDrain must not fire while the scope is still open")

	require.NoError(t, tab.leave(scope, ","))
	require.False(t, fired)
	require.NoError(t, tab.leave(scope, ","))
	require.False(t, fired)
	require.NoError(t, tab.leave(scope, ","))
	require.True(t, fired, "the third leave drains the scope to zero and must fire the waiter")
	require.Equal(t, 0, tab.size())
}

func TestScopeTable_OnDrainFiresImmediatelyWhenAlreadyEmpty(t *testing.T) {
	tab := newScopeTable()
	scope := compiler.ScopeID{Component: "split", Channel: ""}

	fired := false
	tab.onDrain(scope, ",", func() { fired = true })
	require.True(t, fired, "a scope that was never entered is already drained")
}

func TestScopeTable_LeaveUnderflowReturnsError(t *testing.T) {
	tab := newScopeTable()
	scope := compiler.ScopeID{Component: "split", Channel: ""}

	err := tab.leave(scope, ",")
	require.ErrorIs(t, err, ErrScopeUnderflow)
}

func TestScopeTable_DistinctPrefixesAreIndependentWindows(t *testing.T) {
	tab := newScopeTable()
	scope := compiler.ScopeID{Component: "split", Channel: ""}

	tab.enter(scope, ",0,")
	tab.enter(scope, ",1,")
	require.Equal(t, 2, tab.size())

	firedA := false
	tab.onDrain(scope, ",0,", func() { firedA = true })
	require.NoError(t, tab.leave(scope, ",0,"))
	require.True(t, firedA)
	require.Equal(t, 1, tab.size(), "the sibling prefix's window must remain open")

	require.NoError(t, tab.leave(scope, ",1,"))
	require.Equal(t, 0, tab.size())
}
