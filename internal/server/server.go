package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ServeOptions configures the preview server.
type ServeOptions struct {
	Bind       string
	Port       int
	OutputDir  string
	LiveReload bool
	Logger     *slog.Logger
}

// Server serves a built site from disk with clean URLs and, optionally,
// WebSocket live reload.
type Server struct {
	options ServeOptions
	hub     *Hub
	logger  *slog.Logger
}

// contentTypes covers extensions the platform MIME table may lack.
var contentTypes = map[string]string{
	".webp": "image/webp",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
}

// NewServer creates a Server for the given options.
func NewServer(opts ServeOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		options: opts,
		hub:     NewHub(logger),
		logger:  logger,
	}
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.options.Bind, fmt.Sprint(s.options.Port))
}

// Handler returns the HTTP handler serving the output directory and the live
// reload endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.options.LiveReload {
		mux.HandleFunc(ReloadPath, s.hub.HandleWS)
	}
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run()
	defer s.hub.Stop()

	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	s.logger.Info("serving site", "url", "http://"+ln.Addr().String(), "dir", s.options.OutputDir)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// NotifyReload tells every connected browser to reload.
func (s *Server) NotifyReload() {
	s.logger.Debug("live reload", "clients", s.hub.ClientCount())
	s.hub.Broadcast([]byte("reload"))
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	filePath := s.resolveFilePath(r.URL.Path)
	if filePath == "" {
		s.handle404(w)
		return
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		s.handle404(w)
		return
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	contentType := contentTypes[ext]
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if s.options.LiveReload && strings.HasPrefix(contentType, "text/html") {
		data = InjectLiveReload(data)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// resolveFilePath maps a URL path to a file in the output directory. A
// directory resolves to its index.html and an extensionless path may name
// an .html file. It returns "" when nothing matches.
func (s *Server) resolveFilePath(urlPath string) string {
	cleaned := path.Clean("/" + urlPath)
	fullPath := filepath.Join(s.options.OutputDir, filepath.FromSlash(cleaned))

	if info, err := os.Stat(fullPath); err == nil {
		if !info.IsDir() {
			return fullPath
		}
		indexPath := filepath.Join(fullPath, "index.html")
		if _, err := os.Stat(indexPath); err == nil {
			return indexPath
		}
		return ""
	}

	if htmlPath := fullPath + ".html"; fileExists(htmlPath) {
		return htmlPath
	}
	return ""
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// handle404 serves the site's 404.html when present.
func (s *Server) handle404(w http.ResponseWriter) {
	data, err := os.ReadFile(filepath.Join(s.options.OutputDir, "404.html"))
	if err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(data)
		return
	}
	http.Error(w, "404 page not found", http.StatusNotFound)
}
