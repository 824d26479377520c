package server

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

type brotliResponseWriter struct {
	http.ResponseWriter
	bw    *brotli.Writer
	wrote bool
}

func (w *brotliResponseWriter) WriteHeader(code int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(code)
}

func (w *brotliResponseWriter) Write(p []byte) (int, error) {
	w.wrote = true
	w.Header().Del("Content-Length")
	return w.bw.Write(p)
}

// compressMiddleware brotli-encodes responses for clients that accept br.
func compressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		if !acceptsBrotli(r.Header.Get("Accept-Encoding")) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "br")
		bw := &brotliResponseWriter{ResponseWriter: w, bw: brotli.NewWriterLevel(w, brotli.DefaultCompression)}
		next.ServeHTTP(bw, r)
		if bw.wrote {
			_ = bw.bw.Close()
		}
	})
}

func acceptsBrotli(header string) bool {
	for _, part := range strings.Split(header, ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(enc) != "br" {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
