package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"SpotSentinel/internal/model"
)

func newTestTelegram(t *testing.T, h http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("token", "42", "", nil)
	n.APIBase = srv.URL
	n.BaseDelay = time.Millisecond
	return n
}

func TestTelegramNotifySendsEscapedHTML(t *testing.T) {
	var got map[string]string
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	})

	if err := n.Notify(context.Background(), "BUY <BTC>", "qty 0.001"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload %v", got)
	}
	if !strings.Contains(got["text"], "<b>BUY &lt;BTC&gt;</b>") {
		t.Errorf("text not escaped: %q", got["text"])
	}
}

func TestTelegramRetriesThenGivesUp(t *testing.T) {
	var calls int32
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusBadGateway)
	})

	err := n.SendWithRetry(context.Background(), "hi", 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestTelegramRecoversAfterFailure(t *testing.T) {
	var calls int32
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	if err := n.SendWithRetry(context.Background(), "hi", 2); err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

type recordingNotifier struct {
	subjects []string
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, subject, _ string) error {
	r.subjects = append(r.subjects, subject)
	return r.err
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingNotifier{}
	b := &recordingNotifier{err: boom}
	m := Multi{a, b}

	err := m.Notify(context.Background(), "s", "b")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(a.subjects) != 1 || len(b.subjects) != 1 {
		t.Error("every notifier should be called")
	}
}

func TestCombine(t *testing.T) {
	if _, ok := Combine().(Noop); !ok {
		t.Error("no notifiers should give Noop")
	}
	one := &recordingNotifier{}
	if Combine(nil, one) != Notifier(one) {
		t.Error("a single notifier should be returned as is")
	}
	if _, ok := Combine(one, &recordingNotifier{}).(Multi); !ok {
		t.Error("two notifiers should give Multi")
	}
}

func TestEmailNotifier(t *testing.T) {
	if NewEmailNotifier("", 0, "", "", "ops@example.com") != nil {
		t.Fatal("missing host should disable email")
	}

	e := NewEmailNotifier("smtp.example.com", 0, "bot@example.com", "pw", "a@example.com, b@example.com")
	e.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg string
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := e.Notify(context.Background(), "Order\nplaced", "line1\nline2"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %s", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "b@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Order placed\r\n") {
		t.Errorf("subject header missing: %q", gotMsg)
	}
	if !strings.Contains(gotMsg, "line1\r\nline2") {
		t.Errorf("body not CRLF normalized: %q", gotMsg)
	}
}

func TestEmailNotifierHonorsContext(t *testing.T) {
	e := NewEmailNotifier("smtp.example.com", 25, "", "", "ops@example.com")
	block := make(chan struct{})
	defer close(block)
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := e.Notify(ctx, "s", "b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestFormatOrderPlaced(t *testing.T) {
	res := &model.OrderResult{
		OrderID: "1", ClientOrderID: "c1", Symbol: "BTCUSDT", Side: model.Buy,
		Type: model.OrderTypeLimit, Price: "100", Quantity: "0.5", Status: "NEW",
	}
	subject, body := FormatOrderPlaced(res)
	if subject != "BUY 0.5 BTCUSDT @ 100" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Order ID: 1") || !strings.Contains(body, "Client ID: c1") {
		t.Errorf("body = %q", body)
	}

	subject, body = FormatLogWriteFailure(res, errors.New("disk full"))
	if !strings.HasPrefix(subject, "CRITICAL") || !strings.Contains(body, "disk full") {
		t.Errorf("log failure alert = %q / %q", subject, body)
	}
}
