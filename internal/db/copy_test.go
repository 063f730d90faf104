package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyBatched_EmptyRows(t *testing.T) {
	n, err := CopyBatched(context.TODO(), nil, pgx.Identifier{"gazetteer", "regions"}, []string{"region_id"}, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyBatched_SingleBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"gazetteer", "regions"}, []string{"region_id", "name"}).WillReturnResult(3)

	rows := [][]any{{"r1", "Aargau"}, {"r2", "Bern"}, {"r3", "Jura"}}
	n, err := CopyBatched(context.Background(), mock, pgx.Identifier{"gazetteer", "regions"}, []string{"region_id", "name"}, rows, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyBatched_SplitsBatches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"geoname_id"}
	mock.ExpectCopyFrom(pgx.Identifier{"gazetteer", "places"}, cols).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"gazetteer", "places"}, cols).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"gazetteer", "places"}, cols).WillReturnResult(1)

	rows := [][]any{{int64(1)}, {int64(2)}, {int64(3)}, {int64(4)}, {int64(5)}}
	n, err := CopyBatched(context.Background(), mock, pgx.Identifier{"gazetteer", "places"}, cols, rows, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyBatched_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"gazetteer", "regions"}, []string{"region_id"}).
		WillReturnError(fmt.Errorf("permission denied"))

	_, err = CopyBatched(context.Background(), mock, pgx.Identifier{"gazetteer", "regions"}, []string{"region_id"}, [][]any{{"r1"}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `COPY into "gazetteer"."regions"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
