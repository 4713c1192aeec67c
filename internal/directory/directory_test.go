package directory

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResolve(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		User{ID: "u1", Username: "Alice", PlatformUsernames: map[string]string{"psn": "AliceGG"}},
		User{ID: "u2", Username: "bob", PlatformUsernames: map[string]string{"xbox": "shared", "psn": "bobby"}},
		User{ID: "u3", Username: "carol", PlatformUsernames: map[string]string{"steam": "SHARED"}},
	)

	id, err := m.ResolveByUsername(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	id, _ = m.ResolveByPlatformUsername(ctx, "aliceGG")
	assert.Equal(t, "u1", id)

	id, _ = m.ResolveByPlatformUsername(ctx, "shared")
	assert.Empty(t, id, "ambiguous names must not resolve")

	id, _ = m.ResolveByUsername(ctx, "nobody")
	assert.Empty(t, id)
}

func TestMemoryUpsertRejectsTakenUsername(t *testing.T) {
	m := NewMemory(User{ID: "u1", Username: "alice"})
	assert.ErrorIs(t, m.Upsert(context.Background(), User{ID: "u2", Username: "ALICE"}), ErrUsernameTaken)
	assert.NoError(t, m.Upsert(context.Background(), User{ID: "u1", Username: "Alice"}))
}

func TestPostgresResolveByPlatformUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	p := NewPostgres(db)
	q := regexp.QuoteMeta(`SELECT DISTINCT u.id FROM users u, jsonb_each_text(u.platform_usernames) p`)

	mock.ExpectQuery(q).WithArgs("AliceGG").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	id, err := p.ResolveByPlatformUsername(context.Background(), "AliceGG")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	mock.ExpectQuery(q).WithArgs("dup").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1").AddRow("u2"))
	id, err = p.ResolveByPlatformUsername(context.Background(), "dup")
	require.NoError(t, err)
	assert.Empty(t, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolveByUsernameMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE lower(username) = lower($1)`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := NewPostgres(db).ResolveByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
