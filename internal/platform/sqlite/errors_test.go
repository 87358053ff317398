package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(sql.ErrNoRows), store.ErrNotFound)
	assert.ErrorIs(t, mapError(driver.ErrBadConn), store.ErrStoreUnavailable)
	assert.ErrorIs(t, mapError(sql.ErrConnDone), store.ErrStoreUnavailable)
	assert.Equal(t, context.Canceled, mapError(context.Canceled))

	plain := errors.New("near \"SELEC\": syntax error")
	assert.Same(t, plain, mapError(plain))
}

func TestWithPragmas(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file:/tmp/a.db?"+defaultPragmas, withPragmas("/tmp/a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&"+defaultPragmas, withPragmas("file:a.db?mode=rwc"))
	assert.Equal(t, "file:a.db?_pragma=busy_timeout(1)", withPragmas("file:a.db?_pragma=busy_timeout(1)"))
}
