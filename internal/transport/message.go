// SPDX-License-Identifier: MIT
package transport

import (
	"time"

	"biosignal/internal/buffer"
)

// Message type tags.
const (
	TypeBlock       = "block"
	TypeBufferError = "buffer_error"
)

// BlockMessage is the JSON form of a BlockEvent.
type BlockMessage struct {
	Type           string             `json:"type"`
	Session        string             `json:"session,omitempty"`
	Index          int64              `json:"index"`
	StartIndex     int64              `json:"start_index"`
	EndIndex       int64              `json:"end_index"`
	BufferPosition int                `json:"buffer_position"`
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
	Samples        []float32          `json:"samples"`
	Error          *BlockErrorMessage `json:"error,omitempty"`
}

// BlockErrorMessage carries the glitch counters attached to a block.
type BlockErrorMessage struct {
	ErrorCount     int `json:"error_count"`
	CorruptedBytes int `json:"corrupted_bytes"`
	LostBytes      int `json:"lost_bytes"`
}

// ErrorMessage is the JSON form of an ErrorEvent.
type ErrorMessage struct {
	Type           string `json:"type"`
	Session        string `json:"session,omitempty"`
	BytesAvailable int    `json:"bytes_available"`
	BytesLost      int    `json:"bytes_lost"`
	BytesCorrupted int    `json:"bytes_corrupted"`
	BytesTotal     int    `json:"bytes_total"`
	Mode           string `json:"mode"`
}

func NewBlockMessage(ev buffer.BlockEvent) BlockMessage {
	m := BlockMessage{
		Type:           TypeBlock,
		Session:        ev.Session,
		Index:          ev.Block.Index,
		StartIndex:     ev.Block.StartIndex,
		EndIndex:       ev.Block.EndIndex,
		BufferPosition: ev.Block.BufferPosition,
		Start:          ev.Block.Start,
		End:            ev.Block.End,
		Samples:        ev.Block.Data,
	}
	if ev.Error != nil {
		m.Error = &BlockErrorMessage{
			ErrorCount:     ev.Error.ErrorCount,
			CorruptedBytes: ev.Error.CorruptedBytes,
			LostBytes:      ev.Error.LostBytes,
		}
	}
	return m
}

func NewErrorMessage(ev buffer.ErrorEvent) ErrorMessage {
	return ErrorMessage{
		Type:           TypeBufferError,
		Session:        ev.Session,
		BytesAvailable: ev.BytesAvailable,
		BytesLost:      ev.BytesLost,
		BytesCorrupted: ev.BytesCorrupted,
		BytesTotal:     ev.BytesTotal,
		Mode:           ev.Mode.String(),
	}
}
