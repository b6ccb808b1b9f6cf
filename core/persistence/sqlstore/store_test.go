package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tgscreens/core/persistence"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := New(sqlx.NewDb(db, "postgres"))
	t.Cleanup(func() {
		mock.ExpectClose()
		require.NoError(t, s.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return s, mock
}

func TestGetMissingKey(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs("bot_data").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := s.Get(context.Background(), "bot_data")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSetAndGet(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	mock.ExpectExec(regexp.QuoteMeta(setQuery)).
		WithArgs("bot_data", []byte(`{"a":1}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs("bot_data").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"a":1}`)))

	require.NoError(t, s.Set(ctx, "bot_data", []byte(`{"a":1}`)))
	v, err := s.Get(ctx, "bot_data")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(v))
}

func TestHKeys(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(hkeysSQL)).
		WithArgs("user_data").
		WillReturnRows(sqlmock.NewRows([]string{"field"}).AddRow("1").AddRow("42"))

	fields, err := s.HKeys(context.Background(), "user_data")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "42"}, fields)
}

func TestHDelExpandsFields(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM hash_store WHERE key = $1 AND field IN ($2, $3)`)).
		WithArgs("user_data", "1", "2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.HDel(context.Background(), "user_data", "1", "2"))
	require.NoError(t, s.HDel(context.Background(), "user_data"))
}

func TestHUpdateCommits(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM hash_store WHERE key = $1 AND field IN ($2, $3)`)).
		WithArgs("user_data", "1", "2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(hsetQuery)).
		WithArgs("user_data", "42", []byte(`{"x":1}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(hsetQuery)).
		WithArgs("user_data", "7", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.HUpdate(context.Background(), "user_data",
		map[string][]byte{"7": []byte(`{}`), "42": []byte(`{"x":1}`)},
		[]string{"1", "2"})
	require.NoError(t, err)
}

func TestHUpdateRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(hsetQuery)).
		WithArgs("user_data", "1", []byte(`{}`)).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := s.HUpdate(context.Background(), "user_data", map[string][]byte{"1": []byte(`{}`)}, nil)
	assert.ErrorContains(t, err, "deadlock")
}

func TestHUpdateNothingToDo(t *testing.T) {
	s, _ := newMock(t)
	require.NoError(t, s.HUpdate(context.Background(), "user_data", nil, nil))
}

func TestBackendFlushOverSQL(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	mock.ExpectQuery(regexp.QuoteMeta(hkeysSQL)).
		WithArgs("user_data").
		WillReturnRows(sqlmock.NewRows([]string{"field"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(hsetQuery)).
		WithArgs("user_data", "42", []byte(`{"x":1}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := persistence.New(s, persistence.Options{OnFlush: true})
	require.NoError(t, err)
	require.NoError(t, b.UpdateUserData(ctx, 42, persistence.Data{"x": 1}))
	require.NoError(t, b.Flush(ctx))
}
