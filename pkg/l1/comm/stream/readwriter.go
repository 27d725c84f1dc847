// Package stream frames L1 packets over a byte stream, e.g. a TCP or
// unix socket connection.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxPacketSize limits the size of a single packet.
const DefaultMaxPacketSize = 1 << 20

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
	MaxPacketSize uint32
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, MaxPacketSize: DefaultMaxPacketSize}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if p.MaxPacketSize > 0 && size > p.MaxPacketSize {
		return nil, fmt.Errorf("packet size %d exceeds limit %d", size, p.MaxPacketSize)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p.ReadWriter, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter. The length prefix and payload
// are written in one call so concurrent writers don't interleave.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.Write(buf)
	return err
}

// Close closes the underlying stream if it's an io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
