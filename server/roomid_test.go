package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomIDMintAndValidateRoundTrip(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "test-secret")
	t.Setenv("ROOM_ID_ENV", "test")

	rid, err := generateRoomID()
	require.NoError(t, err)
	require.Len(t, rid, roomIDLength)
	require.NoError(t, validateRoomID(rid), "validateRoomID rejected a freshly minted id")
}

func TestRoomIDValidateRejectsTamperedTag(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "test-secret")

	rid, err := generateRoomID()
	require.NoError(t, err)

	tampered := []byte(rid)
	// Flip one character in the random-bytes portion so the id decodes to
	// the same length but carries a stale tag.
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	require.ErrorIs(t, validateRoomID(string(tampered)), ErrInvalidRoomID)
}

func TestRoomIDValidateRejectsWrongLength(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "test-secret")

	require.ErrorIs(t, validateRoomID("too-short"), ErrInvalidRoomID)
}

func TestRoomIDRequiresSecret(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "")

	_, err := generateRoomID()
	require.ErrorIs(t, err, ErrRoomIDSecretMissing)
	require.ErrorIs(t, validateRoomID("anything"), ErrRoomIDSecretMissing)
}

func TestRoomIDDiffersAcrossEnvironments(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "shared-secret")

	t.Setenv("ROOM_ID_ENV", "staging")
	staged, err := generateRoomID()
	require.NoError(t, err)

	t.Setenv("ROOM_ID_ENV", "prod")
	require.Error(t, validateRoomID(staged), "expected a staging-minted id to fail validation under prod context")
	require.Contains(t, roomIDContext("prod"), "prod")
}
