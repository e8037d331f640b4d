// Copyright 2024 The vrrb-core Authors
// This file is part of the vrrb-core library.
//
// The vrrb-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The vrrb-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the vrrb-core library. If not, see <http://www.gnu.org/licenses/>.

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	in := TxnValidatorMsg{TxnID: "t1", Vote: true, ValidatorPubkey: "pk", SenderID: "n1"}
	env, err := Encode(TagTxnValidator, in)
	require.NoError(t, err)
	assert.Equal(t, TagTxnValidator, env.Type)

	var out TxnValidatorMsg
	require.NoError(t, env.Decode(&out))
	assert.Equal(t, in, out)
}

func TestChunkNetworkStateSingleChunkUnderThreshold(t *testing.T) {
	data := []byte("small")
	chunks := ChunkNetworkState(data, "req", "n1")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].ChunkNumber)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, data, chunks[0].Data)
}

func TestChunkNetworkStateSplitsAboveThreshold(t *testing.T) {
	data := bytes.Repeat([]byte("x"), ChunkThreshold*2+1)
	chunks := ChunkNetworkState(data, "req", "n1")
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i+1, c.ChunkNumber)
		assert.Equal(t, 3, c.TotalChunks)
		assert.LessOrEqual(t, len(c.Data), ChunkThreshold)
	}
}

func TestReassembleNetworkStateOutOfOrder(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), ChunkThreshold)
	chunks := ChunkNetworkState(data, "req", "n1")
	require.Greater(t, len(chunks), 1)

	// Reverse delivery order.
	reversed := make([]NetworkStateMsg, len(chunks))
	for i, c := range chunks {
		reversed[len(chunks)-1-i] = c
	}

	out, err := ReassembleNetworkState(reversed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestReassembleNetworkStateMissingChunk(t *testing.T) {
	data := bytes.Repeat([]byte("y"), ChunkThreshold*2)
	chunks := ChunkNetworkState(data, "req", "n1")
	_, err := ReassembleNetworkState(chunks[:len(chunks)-1])
	assert.Error(t, err)
}

func TestTopicsMatchRequiredSubscriptions(t *testing.T) {
	assert.Equal(t, []string{"test-net", "txn", "claim", "block", "validator"}, Topics)
}
