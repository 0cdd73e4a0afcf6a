package coop

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/eventpass-api/internal/domain"
)

func TestFrame_SplitsCoalescedWrites(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte(`{"a":1}`)))
	require.NoError(t, writeFrame(&buf, []byte(`{"b":2}`)))

	first, err := readFrame(&buf)
	require.NoError(t, err)
	second, err := readFrame(&buf)
	require.NoError(t, err)

	assert.Equal(t, `{"a":1}`, string(first))
	assert.Equal(t, `{"b":2}`, string(second))
}

func TestFrame_RejectsOversizedLength(t *testing.T) {
	var header [frameHeaderLength]byte
	binary.BigEndian.PutUint32(header[:], maxFrameLength+1)

	_, err := readFrame(bytes.NewReader(header[:]))
	assert.ErrorIs(t, err, domain.ErrSocket)

	err = writeFrame(&bytes.Buffer{}, make([]byte, maxFrameLength+1))
	assert.ErrorIs(t, err, domain.ErrSocket)
}

func TestDecodeMessage(t *testing.T) {
	body, err := encodeMessage(PieceFound{PieceID: "p1", PlayerID: "u1", Signature: "abcd1234"})
	require.NoError(t, err)

	msg, err := decodeMessage(body)
	require.NoError(t, err)
	assert.Equal(t, PieceFound{PieceID: "p1", PlayerID: "u1", Signature: "abcd1234"}, msg)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `hello`},
		{name: "unknown type", body: `{"type":"WELCOME","payload":{}}`},
		{name: "missing payload", body: `{"type":"JOIN"}`},
		{name: "join without player id", body: `{"type":"JOIN","payload":{"player":{"name":"x"}}}`},
		{name: "piece without id", body: `{"type":"PIECE_FOUND","payload":{"userId":"u1"}}`},
		{name: "bind without badge", body: `{"type":"BIND_BADGE","payload":{}}`},
		{name: "wrong payload shape", body: `{"type":"STATE_UPDATE","payload":[1,2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeMessage([]byte(tt.body))
			assert.ErrorIs(t, err, domain.ErrSocket)
		})
	}
}

func TestErrorMessage_Err(t *testing.T) {
	assert.ErrorIs(t, errorMessageFor(domain.ErrMissionMismatch).Err(), domain.ErrMissionMismatch)
	assert.ErrorIs(t, errorMessageFor(domain.ErrEventMismatch).Err(), domain.ErrEventMismatch)
	assert.ErrorIs(t, errorMessageFor(ErrForgedPiece).Err(), ErrForgedPiece)
	assert.ErrorIs(t, errorMessageFor(ErrUnknownPiece).Err(), ErrUnknownPiece)
	assert.ErrorIs(t, errorMessageFor(domain.ErrSocket).Err(), domain.ErrSocket)
}
