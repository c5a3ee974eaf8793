package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/blazers/internal/testutil"
)

func TestRecoveryWritesPanicResponse(t *testing.T) {
	h := Recovery(testutil.NopLogger(), DefaultPanicHandler)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecoveryRepanicsAbortHandler(t *testing.T) {
	h := Recovery(testutil.NopLogger(), DefaultPanicHandler)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRecoverySkipsHandlerAfterHijack(t *testing.T) {
	handlerCalled := make(chan struct{}, 1)
	panicHandler := func(http.ResponseWriter, *http.Request, any) {
		handlerCalled <- struct{}{}
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
		panic("after upgrade")
	})

	srv := httptest.NewServer(Recovery(testutil.NopLogger(), panicHandler)(Logging(testutil.NopLogger())(inner)))
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: test\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = bufio.NewReader(conn).ReadByte()
	assert.Error(t, err, "hijacked connection should be closed without a response")

	select {
	case <-handlerCalled:
		t.Fatal("panic handler ran on a hijacked connection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoggingCapturesStatus(t *testing.T) {
	var seen *ResponseWriter
	h := Logging(testutil.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		seen = w.(*ResponseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	assert.Equal(t, http.StatusTeapot, seen.Status())
	assert.Equal(t, len("short and stout"), seen.Size())
}

func TestGuard(t *testing.T) {
	assert.True(t, Guard(testutil.NopLogger(), "ok", func() {}))
	assert.False(t, Guard(testutil.NopLogger(), "panics", func() { panic("boom") }))
}
