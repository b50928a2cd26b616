// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"biosignal/internal/buffer"
)

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBlockPublisherSendsPackets(t *testing.T) {
	receiver := listenUDP(t)
	sender, err := NewSender(receiver.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error: %v", err)
	}
	pub, err := NewBlockPublisher(sender, 4)
	if err != nil {
		t.Fatalf("NewBlockPublisher() error: %v", err)
	}
	defer pub.Close()

	start := time.Unix(1700000000, 250)
	for i := int64(1); i <= 2; i++ {
		ev := buffer.BlockEvent{Block: buffer.Block{
			Index: i,
			Data:  []float32{float32(i), -1.5, 0, 3.25},
			Start: start,
		}}
		if err := pub.SendBlock(ev); err != nil {
			t.Fatalf("SendBlock() error: %v", err)
		}
	}

	buf := make([]byte, MaxPayload)
	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	for want := uint32(1); want <= 2; want++ {
		n, _, err := receiver.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("ReadFromUDP() error: %v", err)
		}
		if n != HeaderSize+16 {
			t.Errorf("packet size = %d, want %d", n, HeaderSize+16)
		}
		pkt, err := DecodePacket(buf[:n])
		if err != nil {
			t.Fatalf("DecodePacket() error: %v", err)
		}
		if pkt.Sequence != want || pkt.Index != int64(want) || pkt.Timestamp != start.UnixNano() {
			t.Errorf("packet header = %+v", pkt)
		}
		if len(pkt.Samples) != 4 || pkt.Samples[0] != float32(want) || pkt.Samples[3] != 3.25 {
			t.Errorf("samples = %v", pkt.Samples)
		}
	}
}

func TestPacketLayout(t *testing.T) {
	var buf bytes.Buffer
	err := EncodePacket(&buf, Packet{Sequence: 0x01020304, Timestamp: 5, Index: 6, Samples: []float32{1}})
	if err != nil {
		t.Fatalf("EncodePacket() error: %v", err)
	}
	want := []byte{
		0x01, 0x02, 0x03, 0x04, // sequence
		0, 0, 0, 0, 0, 0, 0, 5, // timestamp
		0, 0, 0, 0, 0, 0, 0, 6, // block index
		0, 1, // count
		0x3f, 0x80, 0, 0, // 1.0
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("packet = % x\nwant    % x", buf.Bytes(), want)
	}
}

func TestDecodePacketShort(t *testing.T) {
	if _, err := DecodePacket(make([]byte, HeaderSize-1)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("expected ErrShortPacket, got %v", err)
	}

	var buf bytes.Buffer
	EncodePacket(&buf, Packet{Samples: []float32{1, 2}})
	if _, err := DecodePacket(buf.Bytes()[:buf.Len()-1]); !errors.Is(err, ErrShortPacket) {
		t.Errorf("expected ErrShortPacket for truncated payload, got %v", err)
	}
}

func TestNewBlockPublisherValidation(t *testing.T) {
	if _, err := NewBlockPublisher(nil, 4); err == nil {
		t.Error("expected error for nil sender")
	}

	receiver := listenUDP(t)
	sender, err := NewSender(receiver.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error: %v", err)
	}
	defer sender.Close()
	if _, err := NewBlockPublisher(sender, MaxSamples+1); err == nil {
		t.Error("expected error for oversized block")
	}
}

func TestSenderClosed(t *testing.T) {
	receiver := listenUDP(t)
	sender, err := NewSender(receiver.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("expected error sending on a closed sender")
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not-an-address"); err == nil {
		t.Error("expected resolve error")
	}
}
