package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"recruitment-tracker-go/internal/apperr"
)

func TestRebind(t *testing.T) {
	q := `SELECT * FROM entities WHERE id = ? AND (assigned_caller IS NULL OR assigned_caller = '?') AND status = ?`

	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t,
		`SELECT * FROM entities WHERE id = $1 AND (assigned_caller IS NULL OR assigned_caller = '?') AND status = $2`,
		postgresDialect.rebind(q),
	)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Code
	}{
		{"bad conn", driver.ErrBadConn, apperr.CodeStorageUnavailable},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), apperr.CodeStorageUnavailable},
		{"pg connection failure", &pq.Error{Code: "08006"}, apperr.CodeStorageUnavailable},
		{"pg admin shutdown", &pq.Error{Code: "57P01"}, apperr.CodeStorageUnavailable},
		{"pg unique", &pq.Error{Code: "23505"}, apperr.CodeConflict},
		{"pg foreign key", &pq.Error{Code: "23503"}, apperr.CodeValidation},
		{"pg syntax", &pq.Error{Code: "42601"}, apperr.CodeInternal},
		{"plain", errors.New("boom"), apperr.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			assert.Equal(t, tt.want, apperr.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassifyKeepsDomainErrors(t *testing.T) {
	nf := apperr.NotFound("entity", "x")
	assert.Same(t, nf, classify("op", nf))
	assert.NoError(t, classify("op", nil))
}
