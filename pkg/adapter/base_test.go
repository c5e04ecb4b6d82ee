package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/pasture/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			assert.NoError(t, base.Close())
			assert.NoError(t, base.Close(), "second close should be a no-op")
			assert.False(t, base.IsConnected())
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		args      []any
		expectErr bool
		errMsg    string
	}{
		{
			name:      "query without connection",
			setupDB:   false,
			sql:       "SELECT 1",
			expectErr: true,
			errMsg:    "database connection not established",
		},
		{
			name:    "query with args",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"Year", "Month"}).
					AddRow(2010, 3).
					AddRow(2010, 4)
				mock.ExpectQuery(`SELECT "Year", "Month" FROM "Native_Inputs" WHERE "Region" = \?`).
					WithArgs(4).
					WillReturnRows(rows)
			},
			sql:       `SELECT "Year", "Month" FROM "Native_Inputs" WHERE "Region" = ?`,
			args:      []any{4},
			expectErr: false,
		},
		{
			name:    "query with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INVALID").WillReturnError(assert.AnError)
			},
			sql:       "INVALID SQL",
			expectErr: true,
			errMsg:    "query store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			rows, err := base.Query(ctx, tt.sql, tt.args...)
			if tt.expectErr {
				require.Error(t, err)
				assert.Nil(t, rows)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
				assert.NotNil(t, rows)
				defer func() { _ = rows.Close() }()
			}
		})
	}
}

func TestBaseSQLAdapter_GetTableMetadataCommon(t *testing.T) {
	d := &core.DialectConfig{Name: "postgres", DefaultSchema: "public", Placeholder: core.PlaceholderDollar}

	t.Run("columns found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`information_schema.columns`).
			WithArgs("public", "Native_Inputs").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
				AddRow("Region", "integer", "NO", 1).
				AddRow("Growth", "double precision", "YES", 2))

		base := &BaseSQLAdapter{DB: db}
		meta, err := base.GetTableMetadataCommon(context.Background(), "Native_Inputs", d)
		require.NoError(t, err)

		assert.Equal(t, "public", meta.Schema)
		assert.Equal(t, []string{"Region", "Growth"}, meta.ColumnNames())
		assert.False(t, meta.Columns[0].Nullable)
		assert.True(t, meta.Columns[1].Nullable)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("table missing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`information_schema.columns`).
			WithArgs("grasp", "inputs").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}))

		base := &BaseSQLAdapter{DB: db}
		_, err = base.GetTableMetadataCommon(context.Background(), "grasp.inputs", d)

		var notFound *TableNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "grasp.inputs", notFound.Table)
	})

	t.Run("not connected", func(t *testing.T) {
		base := &BaseSQLAdapter{}
		_, err := base.GetTableMetadataCommon(context.Background(), "Native_Inputs", d)
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestParseQualifiedName(t *testing.T) {
	d := &core.DialectConfig{DefaultSchema: "main"}

	tests := []struct {
		table, schema, name string
	}{
		{"Native_Inputs", "main", "Native_Inputs"},
		{"grasp.Native_Inputs", "grasp", "Native_Inputs"},
		{"a.b.c", "main", "a.b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			schema, name := ParseQualifiedName(tt.table, d)
			assert.Equal(t, tt.schema, schema)
			assert.Equal(t, tt.name, name)
		})
	}
}
