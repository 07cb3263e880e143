// internal/session/manager_test.go
package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/models"
	"property-concierge/internal/store"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	return l
}

// storeLoggerAdapter satisfies the store package's logger interface.
type storeLoggerAdapter struct{ l *TestLogger }

func (a storeLoggerAdapter) Info(msg string, fields map[string]interface{})  { a.l.Info(msg, fields) }
func (a storeLoggerAdapter) Warn(msg string, fields map[string]interface{})  { a.l.Warn(msg, fields) }
func (a storeLoggerAdapter) Error(msg string, fields map[string]interface{}) { a.l.Error(msg, fields) }
func (a storeLoggerAdapter) With(fields map[string]interface{}) store.Logger { return a }

var conversationColumns = []string{"id", "user_id", "property_id", "title", "created_at", "updated_at"}
var propertyColumns = []string{"id", "name", "address", "description", "extra", "slug", "created_at"}
var messageColumns = []string{"id", "conversation_id", "role", "content", "metadata", "created_at"}

func newManager(t *testing.T, db *sql.DB) *Manager {
	logger := NewTestLogger(t)
	adapter := storeLoggerAdapter{l: logger}
	return NewManager(
		store.NewConversationStore(db, adapter),
		store.NewPropertyStore(db, adapter),
		store.NewMessageStore(db, adapter),
		logger,
	)
}

func TestGetOrCreateHome_Existing(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("property_id IS NULL").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c1", "u1", nil, "Home Chat", now, now))

	m := newManager(t, db)

	conv, err := m.GetOrCreateHome(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.True(t, conv.IsHome())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateHome_CreatesOnFirstUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("property_id IS NULL").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(conversationColumns))
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), "u1", nil, "Home Chat", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("property_id IS NULL").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c1", "u1", nil, "Home Chat", now, now))

	m := newManager(t, db)

	conv, err := m.GetOrCreateHome(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateHome_LosesInsertRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	// Another request created the home conversation between our lookup and
	// insert; the conflict-tolerant insert affects zero rows and the final
	// re-select converges on the winner's row.
	mock.ExpectQuery("property_id IS NULL").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(conversationColumns))
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), "u1", nil, "Home Chat", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("property_id IS NULL").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c-winner", "u1", nil, "Home Chat", now, now))

	m := newManager(t, db)

	conv, err := m.GetOrCreateHome(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, "c-winner", conv.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateForProperty_CreatesWithPropertyTitle(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("property_id = \\$2").
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows(conversationColumns))
	mock.ExpectQuery("FROM properties").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(propertyColumns).
			AddRow("p1", "Sunset Villa", "123 Palm St", nil, nil, nil, now))
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), "u1", "p1", "Chat for: Sunset Villa", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("property_id = \\$2").
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c2", "u1", "p1", "Chat for: Sunset Villa", now, now))

	m := newManager(t, db)

	conv, err := m.GetOrCreateForProperty(context.Background(), "u1", "p1")
	assert.NoError(t, err)
	assert.Equal(t, "c2", conv.ID)
	assert.Equal(t, "Chat for: Sunset Villa", conv.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateForProperty_UnknownProperty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("property_id = \\$2").
		WithArgs("u1", "missing").
		WillReturnRows(sqlmock.NewRows(conversationColumns))
	mock.ExpectQuery("FROM properties").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(propertyColumns))

	m := newManager(t, db)

	_, err = m.GetOrCreateForProperty(context.Background(), "u1", "missing")
	assert.True(t, apperrors.IsNotFound(err), "missing property must propagate, not create a thread")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSwitchTo_LoadsOrderedHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c1", "u1", "p1", "Chat for: Sunset Villa", now, now))
	mock.ExpectQuery("ORDER BY created_at ASC").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(messageColumns).
			AddRow("m1", "c1", "user", "hello", nil, now).
			AddRow("m2", "c1", "assistant", "hi!", nil, now.Add(time.Second)))

	m := newManager(t, db)

	conv, history, err := m.SwitchTo(context.Background(), "c1")
	assert.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "hi!", history[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAndTouch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "c1", "user", "hello", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET updated_at").
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := newManager(t, db)

	msg, err := m.AppendMessage(context.Background(), "c1", models.RoleUser, "hello", nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	assert.NoError(t, m.Touch(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
