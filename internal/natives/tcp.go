package natives

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// ModuleTCP holds TCP socket and listener operations.
const ModuleTCP = "tcp"

const recvBufSize = 4096

func (r *Registry) registerTCP() {
	r.add(ModuleTCP, code.Iop(qualified(ModuleTCP, "connect"), tcpConnect, noRsrc))
	r.add(ModuleTCP, code.Iop(qualified(ModuleTCP, "listen"), tcpListen, noRsrc))
	r.add(ModuleTCP, code.Iop(qualified(ModuleTCP, "local_port"), tcpLocalPort, 0))
	r.add(ModuleTCP, code.Iop(qualified(ModuleTCP, "accept"), tcpAccept, 0))
	r.add(ModuleTCP, code.Iop(qualified(ModuleTCP, "recv"), tcpRecv, 0))
	r.add(ModuleTCP, code.Iop(qualified(ModuleTCP, "send"), tcpSend, 0))
	r.add(ModuleTCP, code.ClosingIop(qualified(ModuleTCP, "close"), tcpClose, 0))
}

// hostPort reads (host: Str, port: Int) starting at parameter i.
func hostPort(a *args, i int) string {
	host := a.strArg(i)
	port := a.intArg(i + 1)
	return net.JoinHostPort(host, strconv.FormatInt(port, 10))
}

// wouldBlock reports whether err is a poll deadline expiring.
func wouldBlock(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

func pollDeadline(c *iop.Ctx) time.Time {
	return time.Now().Add(c.PollWait())
}

// tcpConnect dials a TCP peer: connect(host, port) -> TcpSocket.
func tcpConnect(c *iop.Ctx) iop.Outcome {
	a := newArgs("tcp.connect", c.Params())
	addr := hostPort(a, 0)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	return iop.Blocking{Run: func(ctx context.Context) iop.Outcome {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return iop.Result{Value: ioFailure("tcp.connect", err)}
		}
		return iop.NewResource{Rsrc: &iop.TcpSocket{Conn: conn}}
	}}
}

// tcpListen binds a listener: listen(host, port) -> TcpListener.
// Port 0 picks a free port; see local_port.
func tcpListen(c *iop.Ctx) iop.Outcome {
	a := newArgs("tcp.listen", c.Params())
	addr := hostPort(a, 0)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return iop.Result{Value: ioFailure("tcp.listen", err)}
	}
	l, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return iop.Result{Value: ioFailure("tcp.listen", err)}
	}
	return iop.NewResource{Rsrc: &iop.TcpListener{Listener: l}}
}

// tcpLocalPort reports the port a listener or socket is bound to:
// local_port(rsrc) -> Int.
func tcpLocalPort(c *iop.Ctx) iop.Outcome {
	r, err := c.TakeRsrc()
	if err != nil {
		return iop.Fail(ir.TagNoResource, "tcp.local_port: "+err.Error(), nil)
	}

	var addr net.Addr
	switch v := r.(type) {
	case *iop.TcpListener:
		addr = v.Listener.Addr()
	case *iop.TcpSocket:
		addr = v.Conn.LocalAddr()
	default:
		return iop.Fail(ir.TagTypeMismatch, "tcp.local_port: "+string(r.Kind())+" is not a TCP resource", r)
	}

	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return iop.Fail(ir.TagTypeMismatch, "tcp.local_port: not a TCP address: "+addr.String(), r)
	}
	return iop.Result{Value: ir.Int(tcpAddr.Port), Rsrc: r}
}

// tcpAccept waits for a connection: accept(listener) -> TcpSocket.
// The listener is handed back alongside the new socket.
func tcpAccept(c *iop.Ctx) iop.Outcome {
	return iop.Async{Future: iop.FutureFunc(func(c *iop.Ctx) (iop.Outcome, bool) {
		l, err := iop.TakeAs[*iop.TcpListener](c)
		if err != nil {
			return iop.Fail(ir.TagTypeMismatch, "tcp.accept: "+err.Error(), nil), true
		}

		if err := l.Listener.SetDeadline(pollDeadline(c)); err != nil {
			return iop.Fail(ir.TagIO, "tcp.accept: "+err.Error(), l), true
		}
		conn, err := l.Listener.Accept()
		if wouldBlock(err) {
			if err := c.InitRsrc(l); err != nil {
				return iop.Fail(ir.TagIO, "tcp.accept: "+err.Error(), l), true
			}
			return nil, false
		}
		if err != nil {
			return iop.Result{Value: ioFailure("tcp.accept", err), Rsrc: l}, true
		}
		return iop.NewResource{Rsrc: &iop.TcpSocket{Conn: conn}, Prev: l}, true
	})}
}

// tcpRecv reads what is available: recv(sock) -> Str. An empty Str means
// the peer closed the connection.
func tcpRecv(c *iop.Ctx) iop.Outcome {
	buf := make([]byte, recvBufSize)

	return iop.Async{Future: iop.FutureFunc(func(c *iop.Ctx) (iop.Outcome, bool) {
		sock, err := iop.TakeAs[*iop.TcpSocket](c)
		if err != nil {
			return iop.Fail(ir.TagTypeMismatch, "tcp.recv: "+err.Error(), nil), true
		}

		if err := sock.Conn.SetReadDeadline(pollDeadline(c)); err != nil {
			return iop.Fail(ir.TagIO, "tcp.recv: "+err.Error(), sock), true
		}
		n, err := sock.Conn.Read(buf)
		switch {
		case n > 0:
			return iop.Result{Value: ir.Str(buf[:n]), Rsrc: sock}, true
		case wouldBlock(err):
			if err := c.InitRsrc(sock); err != nil {
				return iop.Fail(ir.TagIO, "tcp.recv: "+err.Error(), sock), true
			}
			return nil, false
		case errors.Is(err, io.EOF):
			return iop.Result{Value: ir.Str(""), Rsrc: sock}, true
		case err != nil:
			return iop.Result{Value: ioFailure("tcp.recv", err), Rsrc: sock}, true
		default:
			if err := c.InitRsrc(sock); err != nil {
				return iop.Fail(ir.TagIO, "tcp.recv: "+err.Error(), sock), true
			}
			return nil, false
		}
	})}
}

// tcpSend writes text: send(sock, text) -> Int, the byte count. A write
// that would block leaves the socket in the context and is polled again;
// partial writes resume where they stopped.
func tcpSend(c *iop.Ctx) iop.Outcome {
	a := newArgs("tcp.send", c.Params())
	text := a.strArg(1)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	return iop.Async{Future: &sender{data: []byte(text)}}
}

type sender struct {
	data    []byte
	written int
}

func (s *sender) Poll(c *iop.Ctx) (iop.Outcome, bool) {
	sock, err := iop.TakeAs[*iop.TcpSocket](c)
	if err != nil {
		return iop.Fail(ir.TagTypeMismatch, "tcp.send: "+err.Error(), nil), true
	}

	if err := sock.Conn.SetWriteDeadline(pollDeadline(c)); err != nil {
		return iop.Fail(ir.TagIO, "tcp.send: "+err.Error(), sock), true
	}
	n, err := sock.Conn.Write(s.data[s.written:])
	s.written += n
	if wouldBlock(err) {
		if err := c.InitRsrc(sock); err != nil {
			return iop.Fail(ir.TagIO, "tcp.send: "+err.Error(), sock), true
		}
		return nil, false
	}
	if err != nil {
		return iop.Result{Value: ioFailure("tcp.send", err), Rsrc: sock}, true
	}
	return iop.Result{Value: ir.Int(s.written), Rsrc: sock}, true
}

// tcpClose consumes a socket or listener: close(rsrc) -> Void.
func tcpClose(c *iop.Ctx) iop.Outcome {
	r, err := c.TakeRsrc()
	if err != nil {
		return iop.Fail(ir.TagNoResource, "tcp.close: "+err.Error(), nil)
	}
	switch r.(type) {
	case *iop.TcpSocket, *iop.TcpListener:
	default:
		return iop.Fail(ir.TagTypeMismatch, "tcp.close: "+string(r.Kind())+" is not a TCP resource", r)
	}
	if err := r.Close(); err != nil {
		return iop.Result{Value: ioFailure("tcp.close", err)}
	}
	return iop.Result{Value: ir.Void{}}
}
