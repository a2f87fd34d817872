package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakePublisher struct {
	mu       sync.Mutex
	failFor  map[string]error
	payloads []string
}

func (p *fakePublisher) PublishMessage(_ context.Context, _, _ string, message []byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failFor[string(message)]; ok {
		return err
	}
	p.payloads = append(p.payloads, string(message))
	return nil
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var outboxColumns = []string{
	"id", "aggregate_id", "event_type", "payload", "target_exchange",
	"target_routing_key", "status", "retry_count", "created_at", "processed_at", "error_message",
}

func TestProcessPendingMessages_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	pub := &fakePublisher{}
	relay := NewMessageRelay(db, pub)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `outbox_messages`.*FOR UPDATE SKIP LOCKED").
		WillReturnRows(sqlmock.NewRows(outboxColumns))
	mock.ExpectCommit()

	n, err := relay.ProcessPendingMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, pub.payloads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessPendingMessages_PublishesAndMarks(t *testing.T) {
	db, mock := newMockDB(t)
	pub := &fakePublisher{failFor: map[string]error{
		`{"analysis_uuid":"b"}`: errors.New("broker down"),
	}}
	relay := NewMessageRelay(db, pub, WithMaxRetries(5), WithBatchSize(2))

	now := time.Now()
	rows := sqlmock.NewRows(outboxColumns).
		AddRow(1, "a", "analysis.completed", `{"analysis_uuid":"a"}`, "ats.events", "analysis.completed", "PENDING", 0, now, nil, "").
		AddRow(2, "b", "analysis.completed", `{"analysis_uuid":"b"}`, "ats.events", "analysis.completed", "PENDING", 4, now, nil, "")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `outbox_messages`.*FOR UPDATE SKIP LOCKED").WillReturnRows(rows)
	// 第一条发布成功
	mock.ExpectExec("UPDATE `outbox_messages` SET .*`status`").
		WithArgs("", sqlmock.AnyArg(), "SENT", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// 第二条第5次失败，标记为 FAILED
	mock.ExpectExec("UPDATE `outbox_messages` SET .*`status`").
		WithArgs("broker down", 5, "FAILED", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := relay.ProcessPendingMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{`{"analysis_uuid":"a"}`}, pub.payloads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessPendingMessages_UpdateFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	relay := NewMessageRelay(db, &fakePublisher{})

	rows := sqlmock.NewRows(outboxColumns).
		AddRow(1, "a", "analysis.completed", `{}`, "ats.events", "analysis.completed", "PENDING", 0, time.Now(), nil, "")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `outbox_messages`").WillReturnRows(rows)
	mock.ExpectExec("UPDATE `outbox_messages`").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	_, err := relay.ProcessPendingMessages(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartStop(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 100; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT \\* FROM `outbox_messages`").WillReturnRows(sqlmock.NewRows(outboxColumns))
		mock.ExpectCommit()
	}

	relay := NewMessageRelay(db, &fakePublisher{}, WithPollingInterval(10*time.Millisecond))
	relay.Start(context.Background())
	time.Sleep(35 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		relay.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop 未在1秒内返回")
	}
}
