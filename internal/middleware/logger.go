package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// promptParam carries the user's prompt on GET /api/stream/{id} (EventSource cannot send a body).
const promptParam = "message"

// RequestLogger logs requests the way chi's middleware.Logger does, minus the prompt
// query parameter.
func RequestLogger(logger middleware.LoggerInterface) func(http.Handler) http.Handler {
	return middleware.RequestLogger(promptRedactor{
		next: &middleware.DefaultLogFormatter{Logger: logger, NoColor: true},
	})
}

type promptRedactor struct {
	next middleware.LogFormatter
}

func (f promptRedactor) NewLogEntry(r *http.Request) middleware.LogEntry {
	q := r.URL.Query()
	if !q.Has(promptParam) {
		return f.next.NewLogEntry(r)
	}
	q.Del(promptParam)

	// 只改日志用的副本，handler 仍读取原始请求
	u := *r.URL
	u.RawQuery = q.Encode()
	logged := r.WithContext(r.Context())
	logged.URL = &u
	logged.RequestURI = u.RequestURI()
	return f.next.NewLogEntry(logged)
}
