// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"
	"biosignal/internal/transport"
)

/*
UDP Block Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Block start, Unix ns    |
| Block Index       | int64          | 8            | Buffer block index      |
| Sample Count      | uint16         | 2            | Number of floats (N)    |
| Samples           | []float32      | N * 4        | Block samples           |
+-----------------------------------------------------------------------------+

|<-- 4 Bytes -->|<---- 8 Bytes ---->|<---- 8 Bytes ---->|<- 2 Bytes ->|<-- N * 4 Bytes -->|
+---------------+-------------------+-------------------+-------------+-------------------+
|   Sequence    |     Timestamp     |    Block Index    |    Count    |      Samples      |
+---------------+-------------------+-------------------+-------------+-------------------+
*/

const (
	// HeaderSize is the fixed part of a block packet.
	HeaderSize = 4 + 8 + 8 + 2
	// MaxPayload is the largest UDP payload over IPv4.
	MaxPayload = 65507
	// MaxSamples is the largest block that fits one packet.
	MaxSamples = (MaxPayload - HeaderSize) / 4
)

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("short UDP block packet")

// Packet is a decoded block datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Index     int64
	Samples   []float32
}

// BlockPublisher packs every completed block into one datagram and sends it
// through a Sender. Buffer errors are not forwarded; receivers detect gaps
// from the block index.
type BlockPublisher struct {
	sender *Sender

	mu           sync.Mutex
	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewBlockPublisher validates that blocks of blockSize samples fit a packet.
func NewBlockPublisher(sender *Sender, blockSize int) (*BlockPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("BlockPublisher: UDP sender cannot be nil")
	}
	if blockSize <= 0 || blockSize > MaxSamples {
		return nil, fmt.Errorf("BlockPublisher: block size %d does not fit a UDP packet (max %d)", blockSize, MaxSamples)
	}
	applog.Infof("BlockPublisher: Initializing (target %s, %d bytes per packet)", sender.Target(), HeaderSize+4*blockSize)
	return &BlockPublisher{
		sender:       sender,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, HeaderSize+4*blockSize)),
	}, nil
}

func (p *BlockPublisher) SendBlock(ev buffer.BlockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(ev.Block.Data) > MaxSamples {
		return fmt.Errorf("BlockPublisher: block %d has %d samples, max %d", ev.Block.Index, len(ev.Block.Data), MaxSamples)
	}

	p.sequenceNum++
	var ts int64
	if !ev.Block.Start.IsZero() {
		ts = ev.Block.Start.UnixNano()
	}

	p.packetBuffer.Reset()
	if err := EncodePacket(p.packetBuffer, Packet{
		Sequence:  p.sequenceNum,
		Timestamp: ts,
		Index:     ev.Block.Index,
		Samples:   ev.Block.Data,
	}); err != nil {
		return fmt.Errorf("BlockPublisher: Error packing block %d: %w", ev.Block.Index, err)
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	applog.Debugf("BlockPublisher: Sent packet %d (block %d, %d bytes)", p.sequenceNum, ev.Block.Index, p.packetBuffer.Len())
	return nil
}

func (p *BlockPublisher) SendError(buffer.ErrorEvent) error {
	return nil
}

// Close closes the underlying sender.
func (p *BlockPublisher) Close() error {
	return p.sender.Close()
}

var _ transport.Sink = (*BlockPublisher)(nil)

// EncodePacket writes pkt in the block packet layout.
func EncodePacket(buf *bytes.Buffer, pkt Packet) error {
	if len(pkt.Samples) > math.MaxUint16 {
		return fmt.Errorf("too many samples: %d", len(pkt.Samples))
	}
	err := binary.Write(buf, binary.BigEndian, pkt.Sequence)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, pkt.Timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, pkt.Index)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(pkt.Samples)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, pkt.Samples)
	}
	return err
}

// DecodePacket parses a datagram produced by BlockPublisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	pkt := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
		Index:     int64(binary.BigEndian.Uint64(b[12:20])),
	}
	n := int(binary.BigEndian.Uint16(b[20:22]))
	payload := b[HeaderSize:]
	if len(payload) < 4*n {
		return Packet{}, fmt.Errorf("%w: want %d samples, have %d bytes", ErrShortPacket, n, len(payload))
	}
	pkt.Samples = make([]float32, n)
	for i := range pkt.Samples {
		pkt.Samples[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return pkt, nil
}
