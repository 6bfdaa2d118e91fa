// Package telegramtest provides a fake Telegram Bot API server for tests.
package telegramtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
)

// Token is accepted by every Server.
const Token = "123456:test-token"

// Call is one Bot API request received by the Server.
type Call struct {
	Method string
	Form   url.Values
}

// Server records Bot API calls and answers them with canned results.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []Call
	failing map[string]bool
	nextID  int
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{failing: make(map[string]bool)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Bot returns a client pointed at the Server. Handlers run on the calling
// goroutine, so ProcessUpdate returns only after the handler is done.
func (s *Server) Bot(t testing.TB, opts ...bot.Option) *bot.Bot {
	t.Helper()
	opts = append([]bot.Option{bot.WithSkipGetMe(), bot.WithServerURL(s.URL), bot.WithNotAsyncHandlers()}, opts...)
	b, err := bot.New(Token, opts...)
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	return b
}

// Fail makes every later call to method return a Bot API error.
func (s *Server) Fail(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[method] = true
}

// Calls returns the recorded calls to method.
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// WaitCalls waits until at least n calls to method were recorded.
func (s *Server) WaitCalls(t testing.TB, method string, n int) []Call {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		calls := s.Calls(method)
		if len(calls) >= n {
			return calls
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d %s calls, got %d", n, method, len(calls))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	// Non-multipart requests still get their form parsed.
	_ = r.ParseMultipartForm(1 << 20)
	method := path.Base(r.URL.Path)

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Form: r.Form})
	failing := s.failing[method]
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  http.StatusBadRequest,
			"description": "Bad Request: chat not found",
		})
		return
	}

	var result any = true
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "WiseWhisper", "username": "wisewhisper_bot"}
	case "sendMessage":
		chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
		result = map[string]any{
			"message_id": id,
			"date":       time.Now().Unix(),
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       r.FormValue("text"),
		}
	case "getUpdates":
		// Stand-in for long polling so a running bot does not spin.
		select {
		case <-r.Context().Done():
		case <-time.After(20 * time.Millisecond):
		}
		result = []any{}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}
