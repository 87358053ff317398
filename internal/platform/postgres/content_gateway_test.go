//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/platform/postgres"
	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/phrazzld/scry-srs/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentGateway(t *testing.T) {
	t.Parallel()
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx, cancel := context.WithTimeout(context.Background(), testdb.TestTimeout)
		defer cancel()
		gateway := postgres.NewContentGateway(tx, nil)

		moduleID, cardIDs := testdb.MustInsertModule(ctx, t, tx, 3)
		enrolled, stranger := uuid.New(), uuid.New()
		testdb.MustEnroll(ctx, t, tx, enrolled, moduleID)

		card, err := gateway.Card(ctx, cardIDs[0])
		require.NoError(t, err)
		assert.Equal(t, moduleID, card.ModuleID)

		_, err = gateway.Card(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrCardNotFound)

		ok, err := gateway.IsCardAccessible(ctx, enrolled, cardIDs[1])
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = gateway.IsCardAccessible(ctx, stranger, cardIDs[1])
		require.NoError(t, err)
		assert.False(t, ok)

		count, err := gateway.ModuleCardCount(ctx, moduleID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		_, err = gateway.ModuleCardCount(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrModuleNotFound)
	})
}
