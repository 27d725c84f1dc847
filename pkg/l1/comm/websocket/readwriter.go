package websocket

import "golang.org/x/net/websocket"

// ReadWriter implements PacketReadWriter with binary frames.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Conn returns the underlying connection.
func (p *ReadWriter) Conn() *websocket.Conn {
	return (*websocket.Conn)(p)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive(p.Conn(), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send(p.Conn(), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return p.Conn().Close()
}
