package iop

import (
	"errors"
	"net"
	"os"
	"time"
)

// Kind names a resource type. Kinds appear in ir.RsrcRef values.
type Kind string

const (
	KindTcpSocket   Kind = "TcpSocket"
	KindTcpListener Kind = "TcpListener"
	KindUdpSocket   Kind = "UdpSocket"
	KindFile        Kind = "File"
)

// Resource is a sealed interface over native handles owned by a fiber.
type Resource interface {
	rsrc() // Sealed
	Kind() Kind
	Close() error
}

// TcpSocket is a connected stream socket.
type TcpSocket struct {
	Conn net.Conn
}

// TcpListener is a listening stream socket.
type TcpListener struct {
	Listener *net.TCPListener
}

// UdpSocket is a bound datagram socket.
type UdpSocket struct {
	Conn net.PacketConn
}

// File is an open file.
type File struct {
	F *os.File
}

func (*TcpSocket) rsrc()   {}
func (*TcpListener) rsrc() {}
func (*UdpSocket) rsrc()   {}
func (*File) rsrc()        {}

func (*TcpSocket) Kind() Kind   { return KindTcpSocket }
func (*TcpListener) Kind() Kind { return KindTcpListener }
func (*UdpSocket) Kind() Kind   { return KindUdpSocket }
func (*File) Kind() Kind        { return KindFile }

func (s *TcpSocket) Close() error   { return s.Conn.Close() }
func (l *TcpListener) Close() error { return l.Listener.Close() }
func (s *UdpSocket) Close() error   { return s.Conn.Close() }
func (f *File) Close() error        { return f.F.Close() }

// setDeadline sets the read and write deadline of r. A zero t clears it.
// Regular files report os.ErrNoDeadline.
func setDeadline(r Resource, t time.Time) error {
	switch v := r.(type) {
	case *TcpSocket:
		return v.Conn.SetDeadline(t)
	case *TcpListener:
		return v.Listener.SetDeadline(t)
	case *UdpSocket:
		return v.Conn.SetDeadline(t)
	case *File:
		return v.F.SetDeadline(t)
	default:
		return errors.ErrUnsupported
	}
}
