package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_ReserveThenPersist(t *testing.T) {
	r := NewRegistry("sim1registry")
	id := r.Reserve()
	require.NotZero(t, id)

	err := r.Persist(id, ProgramConfig{Owner: "owner"}, AuthorizationData{AuthorizationAddr: "sim1auth"})
	require.NoError(t, err)

	rec, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, "sim1auth", rec.Data.AuthorizationAddr)
}

func TestRegistry_PersistRequiresReservation(t *testing.T) {
	r := NewRegistry("sim1registry")
	err := r.Persist(999, ProgramConfig{}, AuthorizationData{})
	require.Error(t, err)
}

func TestRegistry_AllocatorRoundTrip(t *testing.T) {
	r := NewRegistry("sim1registry")
	r.Reserve()
	r.Reserve()
	next := r.AllocatorState()

	r2 := NewRegistry("sim1registry")
	r2.RestoreAllocator(next)
	require.Equal(t, next, r2.AllocatorState())
}
