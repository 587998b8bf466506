package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"task-management/internal/config"
	"task-management/internal/domain"
	"task-management/internal/events"
	"task-management/internal/store/memory"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOpenStore_Memory(t *testing.T) {
	st, err := openStore(context.Background(), config.StoreConfig{Driver: config.DriverMemory}, true)
	require.NoError(t, err)
	require.Nil(t, st.sql)
	require.IsType(t, &memory.TaskStore{}, st.tasks)
	require.NoError(t, st.Close())
}

func TestOpenStore_SQLiteMigrates(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "tasks.db")

	st, err := openStore(context.Background(), config.StoreConfig{Driver: config.DriverSQLite, DSN: dsn}, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	task, err := domain.New("t", "d", domain.PriorityLow, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = st.tasks.Add(context.Background(), task)
	require.NoError(t, err)
}

func TestNewFanout_Subscribers(t *testing.T) {
	f, err := newFanout(config.New(), openedStore{tasks: memory.New()}, discard())
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())

	// postgres without an open connection gets no notifier
	cfg := config.New()
	cfg.Store.Driver = config.DriverPostgres
	f, err = newFanout(cfg, openedStore{tasks: memory.New()}, discard())
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())
}

func TestPrintNotification(t *testing.T) {
	id := uuid.New()
	at := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
	payload, err := events.Encode(domain.TaskCreated{ID: id, Title: "Ship it", Priority: domain.PriorityHigh}, at)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printNotification(&buf, &pq.Notification{Channel: "tasks_events", Extra: string(payload)}))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "2031-05-06T07:08:09Z"))
	require.Contains(t, line, id.String())
	require.Contains(t, line, `"Ship it"`)
	require.Contains(t, line, "priority=High")

	require.Error(t, printNotification(&buf, &pq.Notification{Extra: "not json"}))
}

type fakeListener struct {
	ch    chan *pq.Notification
	pings int
	err   error
}

func (f *fakeListener) NotificationChannel() <-chan *pq.Notification { return f.ch }
func (f *fakeListener) Ping() error {
	f.pings++
	return f.err
}

func TestConsume(t *testing.T) {
	id := uuid.New()
	payload, err := events.Encode(domain.TaskStarted{ID: id, Title: "t"}, time.Now())
	require.NoError(t, err)

	l := &fakeListener{ch: make(chan *pq.Notification, 3)}
	l.ch <- nil
	l.ch <- &pq.Notification{Extra: "garbage"}
	l.ch <- &pq.Notification{Extra: string(payload)}
	close(l.ch)

	var buf bytes.Buffer
	err = consume(context.Background(), l, &buf, discard())
	require.EqualError(t, err, "listener closed")
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
	require.Contains(t, buf.String(), id.String())
}

func TestConsume_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &fakeListener{ch: make(chan *pq.Notification), err: errors.New("unused")}
	require.NoError(t, consume(ctx, l, io.Discard, discard()))
}

func TestRunMigrate_RejectsMemory(t *testing.T) {
	t.Setenv("TASKS_STORE_DRIVER", "memory")
	configPath = ""

	rootCmd.SetArgs([]string{"migrate"})
	rootCmd.SetErr(io.Discard)
	err := rootCmd.Execute()
	require.ErrorContains(t, err, "migrate needs a SQL store")
}
