package httpkit

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	if c.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.Timeout)
	}
	if _, ok := c.Transport.(*userAgentTransport); !ok {
		t.Errorf("Transport = %T, want *userAgentTransport", c.Transport)
	}
}

func TestNewClientWithTimeout(t *testing.T) {
	c := NewClient(WithTimeout(0))
	if c.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", c.Timeout)
	}
}

func TestUserAgentInjection(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := NewClient()
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if !strings.HasPrefix(gotUA, "onboard-agent/") {
		t.Errorf("User-Agent = %q, want onboard-agent/ prefix", gotUA)
	}
}

func TestUserAgentNotOverwritten(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := NewClient()
	req, _ := http.NewRequest("GET", srv.URL, nil)
	req.Header.Set("User-Agent", "custom/1.0")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if gotUA != "custom/1.0" {
		t.Errorf("User-Agent = %q, want custom/1.0", gotUA)
	}
}

func TestReadErrorBody(t *testing.T) {
	got := ReadErrorBody(strings.NewReader("  some error text\n"), 4096)
	if got != "some error text" {
		t.Errorf("ReadErrorBody = %q", got)
	}

	long := strings.Repeat("x", 100)
	got = ReadErrorBody(strings.NewReader(long), 10)
	if len(got) != 10 {
		t.Errorf("ReadErrorBody length = %d, want 10", len(got))
	}
}

// flakyTransport fails the first n attempts with err, then succeeds.
type flakyTransport struct {
	failures int
	err      error
	attempts int
	bodies   []string
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.attempts++
	if req.Body != nil {
		b := ReadErrorBody(req.Body, 1024)
		req.Body.Close()
		t.bodies = append(t.bodies, b)
	}
	if t.attempts <= t.failures {
		return nil, t.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       http.NoBody,
		Request:    req,
	}, nil
}

func TestRetryTransportRecovers(t *testing.T) {
	flaky := &flakyTransport{failures: 2, err: syscall.ECONNREFUSED}
	rt := &retryTransport{base: flaky, retries: 2, baseDelay: time.Millisecond}

	req, _ := http.NewRequest("GET", "http://unreachable.invalid/", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip after transient failures: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if flaky.attempts != 3 {
		t.Errorf("attempts = %d, want 3", flaky.attempts)
	}
}

func TestRetryTransportGivesUp(t *testing.T) {
	flaky := &flakyTransport{failures: 10, err: syscall.ECONNREFUSED}
	rt := &retryTransport{base: flaky, retries: 2, baseDelay: time.Millisecond}

	req, _ := http.NewRequest("GET", "http://unreachable.invalid/", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error after retry budget exhausted")
	}
	if flaky.attempts != 3 {
		t.Errorf("attempts = %d, want 3", flaky.attempts)
	}
}

func TestRetryTransportNonTransientNotRetried(t *testing.T) {
	flaky := &flakyTransport{failures: 10, err: fmt.Errorf("certificate rejected")}
	rt := &retryTransport{base: flaky, retries: 2, baseDelay: time.Millisecond}

	req, _ := http.NewRequest("GET", "http://unreachable.invalid/", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if flaky.attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry)", flaky.attempts)
	}
}

// Requests built from a byte slice carry GetBody, so each retry must
// replay the full payload.
func TestRetryTransportReplaysBody(t *testing.T) {
	flaky := &flakyTransport{failures: 1, err: syscall.ECONNRESET}
	rt := &retryTransport{base: flaky, retries: 2, baseDelay: time.Millisecond}

	req, _ := http.NewRequest("POST", "http://unreachable.invalid/", strings.NewReader("payload"))
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if len(flaky.bodies) != 2 {
		t.Fatalf("body reads = %d, want 2", len(flaky.bodies))
	}
	for i, b := range flaky.bodies {
		if b != "payload" {
			t.Errorf("attempt %d body = %q, want %q", i, b, "payload")
		}
	}
}

func TestNewClientWiresRetryTransport(t *testing.T) {
	c := NewClient()
	ua, ok := c.Transport.(*userAgentTransport)
	if !ok {
		t.Fatalf("Transport = %T, want *userAgentTransport", c.Transport)
	}
	if _, ok := ua.base.(*retryTransport); !ok {
		t.Errorf("inner transport = %T, want *retryTransport", ua.base)
	}

	plain := NewClient(WithTransientRetries(0))
	ua, ok = plain.Transport.(*userAgentTransport)
	if !ok {
		t.Fatalf("Transport = %T, want *userAgentTransport", plain.Transport)
	}
	if _, ok := ua.base.(*retryTransport); ok {
		t.Error("retries disabled but retryTransport still wired")
	}
}

func TestIsTransientNetError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", syscall.ECONNREFUSED, true},
		{"wrapped refused", fmt.Errorf("do: %w", syscall.ECONNREFUSED), true},
		{"dial op", &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}, true},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientNetError(tt.err); got != tt.want {
				t.Errorf("IsTransientNetError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
