package clickhouse

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/chainforge/internal/history"
)

// setupClickHouseContainer starts a ClickHouse container for testing.
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return clickHouseContainer, host + ":" + port.Port()
}

// setupSinkWithTable creates a sink and its audit table.
func setupSinkWithTable(ctx context.Context, t *testing.T, dsn, tableName string) *Sink {
	t.Helper()

	sink, err := New(dsn, tableName)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}

	err = sink.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+tableName+` (
			timestamp DateTime64(6),
			service String,
			pid Int64,
			event String,
			exit_code Nullable(Int64),
			detail String
		) ENGINE = MergeTree()
		ORDER BY (timestamp, service)
	`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	return sink
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, dsn := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink := setupSinkWithTable(ctx, t, dsn, "service_history_test")
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	if err := sink.Send(ctx, history.Event{
		Type:       history.EventStarted,
		Service:    "miner",
		PID:        777,
		Detail:     "threads=1",
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Failed to send start event: %v", err)
	}

	if err := sink.Send(ctx, history.Event{
		Type:       history.EventStopped,
		Service:    "miner",
		PID:        777,
		ExitCode:   sql.NullInt64{Int64: 1, Valid: true},
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Failed to send stop event: %v", err)
	}

	var count uint64
	row := sink.conn.QueryRow(ctx, `SELECT COUNT(*) FROM service_history_test WHERE service = 'miner'`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 events, got %d", count)
	}
}
