package natives

import (
	"net"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// ModuleUDP holds UDP socket operations.
const ModuleUDP = "udp"

func (r *Registry) registerUDP() {
	r.add(ModuleUDP, code.Iop(qualified(ModuleUDP, "bind"), udpBind, noRsrc))
	r.add(ModuleUDP, code.Iop(qualified(ModuleUDP, "local_port"), udpLocalPort, 0))
	r.add(ModuleUDP, code.Iop(qualified(ModuleUDP, "send"), udpSend, 0))
	r.add(ModuleUDP, code.Iop(qualified(ModuleUDP, "recv"), udpRecv, 0))
	r.add(ModuleUDP, code.ClosingIop(qualified(ModuleUDP, "close"), udpClose, 0))
}

// udpBind opens a UDP socket: bind(host, port) -> UdpSocket.
func udpBind(c *iop.Ctx) iop.Outcome {
	a := newArgs("udp.bind", c.Params())
	addr := hostPort(a, 0)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return iop.Result{Value: ioFailure("udp.bind", err)}
	}
	return iop.NewResource{Rsrc: &iop.UdpSocket{Conn: conn}}
}

// udpLocalPort reports the bound port: local_port(sock) -> Int.
func udpLocalPort(c *iop.Ctx) iop.Outcome {
	sock, err := iop.TakeAs[*iop.UdpSocket](c)
	if err != nil {
		return iop.Fail(ir.TagTypeMismatch, "udp.local_port: "+err.Error(), nil)
	}
	udpAddr, ok := sock.Conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return iop.Fail(ir.TagTypeMismatch, "udp.local_port: not a UDP address", sock)
	}
	return iop.Result{Value: ir.Int(udpAddr.Port), Rsrc: sock}
}

// udpSend sends one datagram: send(sock, host, port, text) -> Int.
func udpSend(c *iop.Ctx) iop.Outcome {
	a := newArgs("udp.send", c.Params())
	addr := hostPort(a, 1)
	text := a.strArg(3)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	sock, err := iop.TakeAs[*iop.UdpSocket](c)
	if err != nil {
		return iop.Fail(ir.TagTypeMismatch, "udp.send: "+err.Error(), nil)
	}
	dst, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return iop.Result{Value: ioFailure("udp.send", err), Rsrc: sock}
	}
	n, err := sock.Conn.WriteTo([]byte(text), dst)
	if err != nil {
		return iop.Result{Value: ioFailure("udp.send", err), Rsrc: sock}
	}
	return iop.Result{Value: ir.Int(n), Rsrc: sock}
}

// udpRecv waits for one datagram: recv(sock) -> (Str data, Str from).
func udpRecv(c *iop.Ctx) iop.Outcome {
	buf := make([]byte, 64*1024)

	return iop.Async{Future: iop.FutureFunc(func(c *iop.Ctx) (iop.Outcome, bool) {
		sock, err := iop.TakeAs[*iop.UdpSocket](c)
		if err != nil {
			return iop.Fail(ir.TagTypeMismatch, "udp.recv: "+err.Error(), nil), true
		}

		if err := sock.Conn.SetReadDeadline(pollDeadline(c)); err != nil {
			return iop.Fail(ir.TagIO, "udp.recv: "+err.Error(), sock), true
		}
		n, from, err := sock.Conn.ReadFrom(buf)
		if wouldBlock(err) {
			if err := c.InitRsrc(sock); err != nil {
				return iop.Fail(ir.TagIO, "udp.recv: "+err.Error(), sock), true
			}
			return nil, false
		}
		if err != nil {
			return iop.Result{Value: ioFailure("udp.recv", err), Rsrc: sock}, true
		}
		return iop.Result{Value: ir.Tuple{ir.Str(buf[:n]), ir.Str(from.String())}, Rsrc: sock}, true
	})}
}

// udpClose consumes a socket: close(sock) -> Void.
func udpClose(c *iop.Ctx) iop.Outcome {
	sock, err := iop.TakeAs[*iop.UdpSocket](c)
	if err != nil {
		return iop.Fail(ir.TagTypeMismatch, "udp.close: "+err.Error(), nil)
	}
	if err := sock.Close(); err != nil {
		return iop.Result{Value: ioFailure("udp.close", err)}
	}
	return iop.Result{Value: ir.Void{}}
}
