package preview

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitegen/internal/incremental"
	"git.home.luguber.info/inful/sitegen/internal/pipeline"
)

func TestDevServer_ServesAndReloads(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "content")
	require.NoError(t, os.MkdirAll(content, 0o750))
	page := filepath.Join(content, "about.md")
	require.NoError(t, os.WriteFile(page, []byte("---\ntitle: About\n---\n\nFirst.\n"), 0o600))

	s, err := pipeline.New(pipeline.Options{ContentRoot: content, OutputRoot: filepath.Join(dir, "_site")})
	require.NoError(t, err)

	rec := &gaugeRecorder{}
	ready := make(chan net.Addr, 1)
	srv := NewDevServer(incremental.NewBuilder(s), Options{
		Host:       "127.0.0.1",
		Port:       0,
		LiveReload: true,
		Debounce:   30 * time.Millisecond,
		Recorder:   rec,
		Ready:      func(a net.Addr) { ready <- a },
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- srv.Run(ctx) }()

	var addr net.Addr
	select {
	case addr = <-ready:
	case err := <-result:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}
	base := "http://" + addr.String()

	resp, err := http.Get(base + "/about.html")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "First.")
	assert.Contains(t, string(body), ReloadMarker)

	conn, wsResp, err := websocket.DefaultDialer.Dial("ws://"+addr.String()+ReloadPath, nil)
	require.NoError(t, err)
	if wsResp != nil && wsResp.Body != nil {
		_ = wsResp.Body.Close()
	}
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { n, _ := rec.snapshot(); return n == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(page, []byte("---\ntitle: About\n---\n\nSecond.\n"), 0o600))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ReloadMessage, string(msg))

	data, err := os.ReadFile(s.OutputPath("about.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Second.")
	assert.Contains(t, string(data), ReloadMarker)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDevServer_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	dir := t.TempDir()
	content := filepath.Join(dir, "content")
	require.NoError(t, os.MkdirAll(content, 0o750))
	s, err := pipeline.New(pipeline.Options{ContentRoot: content, OutputRoot: filepath.Join(dir, "_site")})
	require.NoError(t, err)

	err = NewDevServer(incremental.NewBuilder(s), Options{Host: "127.0.0.1", Port: port}).Run(t.Context())
	require.Error(t, err)
}
