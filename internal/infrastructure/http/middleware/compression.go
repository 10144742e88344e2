package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
)

// CompressionConfig configures response compression
type CompressionConfig struct {
	BrotliLevel  int
	GzipLevel    int
	MinSizeBytes int
	// CompressibleTypes are media type prefixes eligible for compression
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses JSON and text bodies of 1KB or more
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		BrotliLevel:  5,
		GzipLevel:    gzip.DefaultCompression,
		MinSizeBytes: 1024,
		CompressibleTypes: []string{
			"application/json",
			"application/problem+json",
			"text/",
		},
	}
}

// bufferedResponse holds the handler output until the encoding is chosen
type bufferedResponse struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.buf.Write(p)
}

// Compress encodes response bodies with brotli or gzip, whichever the client
// prefers. WebSocket upgrades and metrics scrapes pass through untouched.
func Compress(cfg CompressionConfig, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" || r.Method == http.MethodHead ||
				strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
				r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			br := &bufferedResponse{ResponseWriter: w}
			next.ServeHTTP(br, r)
			if br.status == 0 {
				br.status = http.StatusOK
			}

			body := br.buf.Bytes()
			header := w.Header()
			header.Add("Vary", "Accept-Encoding")
			if len(body) < cfg.MinSizeBytes || header.Get("Content-Encoding") != "" ||
				!compressible(header.Get("Content-Type"), cfg.CompressibleTypes) {
				w.WriteHeader(br.status)
				_, _ = w.Write(body)
				return
			}

			compressed, err := encode(encoding, body, cfg)
			if err != nil {
				logger.Warn("Response compression failed", zap.String("encoding", encoding), zap.Error(err))
				w.WriteHeader(br.status)
				_, _ = w.Write(body)
				return
			}

			header.Set("Content-Encoding", encoding)
			header.Set("Content-Length", strconv.Itoa(len(compressed)))
			w.WriteHeader(br.status)
			_, _ = w.Write(compressed)
		})
	}
}

// negotiateEncoding picks br over gzip when both are acceptable
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}
	accepted := make(map[string]bool)
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		accepted[strings.ToLower(strings.TrimSpace(name))] = q > 0
	}

	switch {
	case accepted["br"]:
		return "br"
	case accepted["gzip"]:
		return "gzip"
	default:
		return ""
	}
}

func compressible(contentType string, types []string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if mediaType == "" {
		return false
	}
	for _, t := range types {
		if strings.HasPrefix(mediaType, t) {
			return true
		}
	}
	return false
}

func encode(encoding string, body []byte, cfg CompressionConfig) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "br":
		w = brotli.NewWriterLevel(&buf, cfg.BrotliLevel)
	default:
		gz, err := gzip.NewWriterLevel(&buf, cfg.GzipLevel)
		if err != nil {
			return nil, err
		}
		w = gz
	}

	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
