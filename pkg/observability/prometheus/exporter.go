// Package prometheus exposes the process metrics for scraping.
package prometheus

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Handler returns an HTTP handler for the metrics endpoint (for standard http)
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// HandlerFor returns an HTTP handler for a custom registry
func HandlerFor(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// FastHTTPHandler adapts the metrics endpoint to fasthttp.
func FastHTTPHandler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(Handler())
}

// Server serves /metrics on its own listener, typically a dedicated
// metrics port next to the application port.
type Server struct {
	addr string
	srv  *fasthttp.Server
	ln   net.Listener
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string) *Server {
	handler := FastHTTPHandler()
	return &Server{
		addr: addr,
		srv: &fasthttp.Server{
			Name: "dvrk-metrics",
			Handler: func(ctx *fasthttp.RequestCtx) {
				if string(ctx.Path()) != "/metrics" {
					ctx.SetStatusCode(fasthttp.StatusNotFound)
					return
				}
				handler(ctx)
			},
		},
	}
}

// Start binds the listener and serves in the background. It returns once
// the listener is bound so scrapes cannot race startup.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go s.srv.Serve(ln) //nolint:errcheck
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}
