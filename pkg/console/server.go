package console

import (
	"context"
	"net"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/uartlog/uartlog/pkg/framework"
)

// Server accepts console sessions over a TCP listener. Each accepted
// connection gets its own Session task.
type Server struct {
	Addr     string
	Commands *CommandSet
}

// NewServer creates a Server.
func NewServer(addr string, commands *CommandSet) *Server {
	return &Server{Addr: addr, Commands: commands}
}

// Name implements framework.Named.
func (srv *Server) Name() string {
	return "console-server"
}

// Run implements framework.Task.
func (srv *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	glog.Infof("console listening on %s", lis.Addr())
	return fx.RunWithContextCloser(ctx, lis, func() error {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return err
			}
			go srv.serve(ctx, conn)
		}
	})
}

func (srv *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sess := NewSession(conn.RemoteAddr().String(), conn, srv.Commands)
	glog.Infof("%s connected", sess.Name())
	if err := sess.Run(ctx); err != nil && err != context.Canceled {
		glog.V(1).Infof("%s closed: %v", sess.Name(), err)
	}
	glog.Infof("%s disconnected", sess.Name())
}

// WebsocketServer serves console sessions over websocket at /console.
type WebsocketServer struct {
	Addr     string
	Commands *CommandSet
}

// NewWebsocketServer creates a WebsocketServer.
func NewWebsocketServer(addr string, commands *CommandSet) *WebsocketServer {
	return &WebsocketServer{Addr: addr, Commands: commands}
}

// Name implements framework.Named.
func (srv *WebsocketServer) Name() string {
	return "console-ws-server"
}

// Run implements framework.Task.
func (srv *WebsocketServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/console", websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		defer conn.Close()
		sess := NewSession(conn.Request().RemoteAddr, conn, srv.Commands)
		glog.Infof("%s connected over websocket", sess.Name())
		if err := sess.Run(ctx); err != nil && err != context.Canceled {
			glog.V(1).Infof("%s closed: %v", sess.Name(), err)
		}
	}))
	server := &http.Server{Addr: srv.Addr, Handler: mux}
	glog.Infof("websocket console listening on %s", srv.Addr)
	return fx.RunWithContextCancel(ctx, func() { server.Close() }, func() error {
		err := server.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
}
