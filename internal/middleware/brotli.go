package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// CompressConfig tunes the brotli response middleware.
type CompressConfig struct {
	Quality   int
	MinLength int
}

// DefaultCompressConfig compresses JSON bodies of 1 KiB and up. Session
// snapshots rarely reach it; acquisition listings usually do.
var DefaultCompressConfig = CompressConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// compressWriter holds the body back until it is known to be large enough,
// then switches to streaming through the brotli encoder.
type compressWriter struct {
	gin.ResponseWriter
	quality   int
	minLength int
	buf       []byte
	encoder   *brotli.Writer
}

func (w *compressWriter) Write(data []byte) (int, error) {
	if w.encoder != nil {
		return w.encoder.Write(data)
	}
	w.buf = append(w.buf, data...)
	if len(w.buf) < w.minLength {
		return len(data), nil
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.encoder = brotli.NewWriterLevel(w.ResponseWriter, w.quality)
	if _, err := w.encoder.Write(w.buf); err != nil {
		return 0, err
	}
	w.buf = nil
	return len(data), nil
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// finish writes whatever is still buffered. Small bodies go out untouched.
func (w *compressWriter) finish() error {
	if w.encoder != nil {
		return w.encoder.Close()
	}
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.buf)
	w.buf = nil
	return err
}

// Compress brotli-encodes responses for clients that accept it.
func Compress() gin.HandlerFunc {
	return CompressWithConfig(DefaultCompressConfig)
}

// CompressWithConfig is Compress with explicit settings.
func CompressWithConfig(cfg CompressConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultCompressConfig.MinLength
	}

	return func(c *gin.Context) {
		// The stream endpoint hijacks the connection.
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		cw := &compressWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = cw
		defer func() {
			if err := cw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
