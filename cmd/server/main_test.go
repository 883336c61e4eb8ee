package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_WaitsForCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	var cleaned atomic.Bool

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := serve(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), srv, func() {
		time.Sleep(50 * time.Millisecond)
		cleaned.Store(true)
	})

	require.NoError(t, err)
	assert.True(t, cleaned.Load(), "serve returned before cleanup finished")
}

func TestServe_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "not-an-address", Handler: http.NotFoundHandler()}
	err := serve(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), srv, func() {})
	assert.Error(t, err)
}
