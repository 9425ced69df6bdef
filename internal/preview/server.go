package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/gorilla/mux"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

const (
	// ReloadPath is the WebSocket endpoint browsers subscribe to.
	ReloadPath = "/__livereload"
	// MetricsPath serves Prometheus metrics when enabled.
	MetricsPath = "/metrics"

	readHeaderTimeout = 10 * time.Second
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Root is the output directory served as static files.
	Root string
	// Hub serves ReloadPath when non-nil.
	Hub http.Handler
	// Metrics serves MetricsPath when non-nil.
	Metrics http.Handler
}

// NewRouter serves the output tree. The site root answers with index.html.
func NewRouter(opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	if opts.Hub != nil {
		r.Handle(ReloadPath, opts.Hub).Methods(http.MethodGet)
	}
	if opts.Metrics != nil {
		r.Handle(MetricsPath, opts.Metrics).Methods(http.MethodGet)
	}
	index := filepath.Join(opts.Root, "index.html")
	r.Path("/").Methods(http.MethodGet, http.MethodHead).HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, req, index)
	})
	files := http.FileServer(http.Dir(opts.Root))
	r.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).Handler(noCache(files))
	return withMiddleware(r)
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// Server is the preview HTTP listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr. Use ":0" for an ephemeral port.
func Listen(addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "binding preview server").
			WithContext("addr", addr).
			Fatal().
			Build()
	}
	return &Server{
		srv: &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout},
		ln:  ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Port returns the bound TCP port.
func (s *Server) Port() int {
	if a, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve() error {
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "preview server failed").Build()
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ListenURLs returns the URLs the server is reachable at: localhost first, then
// every IPv4 address of an interface that is up.
func ListenURLs(port int) []string {
	urls := []string{fmt.Sprintf("http://localhost:%d", port)}
	ifaces, err := net.Interfaces()
	if err != nil {
		slog.Debug("Listing network interfaces failed", logfields.Error(err))
		return urls
	}
	var extra []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			extra = append(extra, fmt.Sprintf("http://%s:%d", ip, port))
		}
	}
	sort.Strings(extra)
	return append(urls, extra...)
}
