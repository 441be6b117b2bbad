package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/azerweys/panel/backend/internal/model/user"
	"github.com/azerweys/panel/backend/internal/service/audit"
)

func TestRunServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunServer_ReportsListenError(t *testing.T) {
	srv := &http.Server{Addr: "bad-address", Handler: http.NotFoundHandler()}
	require.Error(t, runServer(context.Background(), srv))
}

func TestFlushAudit_WaitsForPendingDeliveries(t *testing.T) {
	var delivered atomic.Int32
	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer telegram.Close()

	notifier := audit.New(audit.Config{BotToken: "token", ChatID: "42", BaseURL: telegram.URL})
	notifier.Notify(user.Identity{Username: "boss", DisplayName: "Boss", Role: user.RoleOwner}, "sistemdən çıxdı.")

	flushAudit(notifier, 5*time.Second)
	require.Equal(t, int32(1), delivered.Load())
}

func TestFlushAudit_IgnoresLogOnlyNotifier(t *testing.T) {
	flushAudit(audit.LogNotifier{}, time.Millisecond)
}
