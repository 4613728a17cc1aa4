package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

const (
	maxRequestBody = 1 << 20
	maxLoggedBody  = 4 << 10
)

// sensitiveFields are masked wherever they appear in a JSON body.
var sensitiveFields = map[string]bool{
	"password":    true,
	"email":       true,
	"clientname":  true,
	"clientphone": true,
	"clientemail": true,
	"address":     true,
}

func LogMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			var body []byte
			if r.Body != nil {
				data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
						return
					}
					http.Error(w, "failed to read body", http.StatusBadRequest)
					return
				}
				r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(data))
				body = data
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logger.Infof("request uri=%s method=%s status=%d duration=%s size=%d requestid=%s body=%s outputheaders=%v",
				r.RequestURI,
				r.Method,
				status,
				time.Since(start),
				ww.BytesWritten(),
				chiMiddleware.GetReqID(r.Context()),
				loggedBody(body),
				ww.Header(),
			)
		})
	}
}

// loggedBody keeps credentials and client contacts out of the log. Bodies
// that are not JSON are reported by size only.
func loggedBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Sprintf("<%d bytes>", len(body))
	}

	out, err := json.Marshal(redact(doc))
	if err != nil {
		return fmt.Sprintf("<%d bytes>", len(body))
	}
	if len(out) > maxLoggedBody {
		return string(out[:maxLoggedBody]) + "..."
	}
	return string(out)
}

func redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if sensitiveFields[strings.ToLower(k)] {
				val[k] = "***"
				continue
			}
			val[k] = redact(inner)
		}
		return val
	case []any:
		for i := range val {
			val[i] = redact(val[i])
		}
		return val
	default:
		return v
	}
}
