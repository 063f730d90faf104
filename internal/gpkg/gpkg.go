// Package gpkg reads and writes GeoPackage containers through
// modernc.org/sqlite: the three required metadata tables, feature tables
// with a leading fid/geom pair, and the GeoPackage binary geometry
// encoding. It covers exactly what the pipeline needs to read GADM levels
// files and write the derived layers, not the full OGC surface.
package gpkg

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	_ "modernc.org/sqlite"
)

// SRIDWGS84 is the only spatial reference the pipeline produces.
const SRIDWGS84 = 4326

const wgs84Definition = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

const baseMigration = `
CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
	srs_name                 TEXT NOT NULL,
	srs_id                   INTEGER NOT NULL PRIMARY KEY,
	organization             TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition               TEXT NOT NULL,
	description              TEXT
);

CREATE TABLE IF NOT EXISTS gpkg_contents (
	table_name  TEXT NOT NULL PRIMARY KEY,
	data_type   TEXT NOT NULL,
	identifier  TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x       DOUBLE,
	min_y       DOUBLE,
	max_x       DOUBLE,
	max_y       DOUBLE,
	srs_id      INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
	table_name         TEXT NOT NULL,
	column_name        TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id             INTEGER NOT NULL,
	z                  TINYINT NOT NULL,
	m                  TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

INSERT OR IGNORE INTO gpkg_spatial_ref_sys
	(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
VALUES
	('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
	('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system');
`

// DB is an open GeoPackage file.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens an existing GeoPackage read-write without touching its
// metadata tables. The file must exist; sqlite would otherwise mint an
// empty database where a caller expected a built container.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "gpkg: open %s", path)
	}
	return openFile(path)
}

func openFile(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: open %s", path)
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "gpkg: exec %s", pragma)
		}
	}
	return &DB{db: db, path: path}, nil
}

// Create opens path as a fresh GeoPackage, installing the required
// metadata tables, the WGS-84 spatial reference entry, and the GPKG
// application id. The file may already exist; tables are created
// idempotently.
func Create(path string) (*DB, error) {
	g, err := openFile(path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA application_id=1196444487",
		"PRAGMA user_version=10300",
		"PRAGMA journal_mode=DELETE",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := g.db.Exec(pragma); err != nil {
			g.Close()
			return nil, eris.Wrapf(err, "gpkg: exec %s", pragma)
		}
	}
	if _, err := g.db.Exec(baseMigration); err != nil {
		g.Close()
		return nil, eris.Wrap(err, "gpkg: create metadata tables")
	}
	if _, err := g.db.Exec(
		`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
			(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES ('WGS 84 geodetic', ?, 'EPSG', ?, ?, 'longitude/latitude in decimal degrees')`,
		SRIDWGS84, SRIDWGS84, wgs84Definition,
	); err != nil {
		g.Close()
		return nil, eris.Wrap(err, "gpkg: insert wgs84 srs")
	}
	return g, nil
}

// Close closes the underlying database.
func (g *DB) Close() error {
	return g.db.Close()
}

// Path returns the file path the container was opened from.
func (g *DB) Path() string {
	return g.path
}

// Column describes one attribute column of a feature table. Type carries
// the full SQL column type, constraints included.
type Column struct {
	Name string
	Type string
}

// CreateFeatureTable creates an empty feature table and registers it in
// gpkg_contents and gpkg_geometry_columns. geomType is the uppercase
// GeoPackage geometry type name (POINT, MULTIPOLYGON, ...).
func (g *DB) CreateFeatureTable(ctx context.Context, name, geomType string, cols []Column) error {
	defs := make([]string, 0, len(cols)+2)
	defs = append(defs, "fid INTEGER PRIMARY KEY AUTOINCREMENT", "geom BLOB")
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("%q %s", c.Name, c.Type))
	}

	ddl := fmt.Sprintf("CREATE TABLE %q (%s)", name, strings.Join(defs, ", "))
	if _, err := g.db.ExecContext(ctx, ddl); err != nil {
		return eris.Wrapf(err, "gpkg: create feature table %s", name)
	}

	if _, err := g.db.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
		name, name, SRIDWGS84,
	); err != nil {
		return eris.Wrapf(err, "gpkg: register %s in gpkg_contents", name)
	}
	if _, err := g.db.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, 'geom', ?, ?, 0, 0)`,
		name, geomType, SRIDWGS84,
	); err != nil {
		return eris.Wrapf(err, "gpkg: register %s in gpkg_geometry_columns", name)
	}
	return nil
}

// InsertFeatures bulk-inserts rows into a feature table inside one
// transaction. Each row must match cols positionally, with the encoded
// geometry blob first (nil for a NULL geometry).
func (g *DB) InsertFeatures(ctx context.Context, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(cols)+1)
	for i := range placeholders {
		placeholders[i] = "?"
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %q (geom, %s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "gpkg: begin insert tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return eris.Wrapf(err, "gpkg: prepare insert into %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range rows {
		if len(row) != len(cols)+1 {
			return eris.Errorf("gpkg: row %d has %d values, want %d", i, len(row), len(cols)+1)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "gpkg: insert row %d into %s", i, table)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "gpkg: commit insert into %s", table)
	}
	return nil
}

// SetContentsBounds records the layer envelope in gpkg_contents.
func (g *DB) SetContentsBounds(ctx context.Context, table string, minX, minY, maxX, maxY float64) error {
	_, err := g.db.ExecContext(ctx,
		`UPDATE gpkg_contents SET min_x = ?, min_y = ?, max_x = ?, max_y = ? WHERE table_name = ?`,
		minX, minY, maxX, maxY, table,
	)
	return eris.Wrapf(err, "gpkg: update bounds for %s", table)
}

// FeatureTables lists the feature layers registered in gpkg_contents.
func (g *DB) FeatureTables(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name`)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: query contents")
	}
	defer rows.Close() //nolint:errcheck

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "gpkg: scan table name")
		}
		tables = append(tables, name)
	}
	return tables, eris.Wrap(rows.Err(), "gpkg: iterate contents")
}

// HasTable reports whether a table or view with the given name exists.
func (g *DB) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := g.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "gpkg: check table %s", name)
	}
	return n > 0, nil
}

// TableColumns returns the column names of a table in declaration order.
func (g *DB) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: table_info %s", table)
	}
	defer rows.Close() //nolint:errcheck

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, eris.Wrap(err, "gpkg: scan table_info")
		}
		cols = append(cols, name)
	}
	return cols, eris.Wrapf(rows.Err(), "gpkg: iterate table_info %s", table)
}

// GeometryColumn returns the registered geometry column for a feature
// table, defaulting to "geom" when the registry has no entry.
func (g *DB) GeometryColumn(ctx context.Context, table string) (string, error) {
	var col string
	err := g.db.QueryRowContext(ctx,
		`SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?`, table,
	).Scan(&col)
	if err == sql.ErrNoRows {
		return "geom", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "gpkg: geometry column for %s", table)
	}
	return col, nil
}

// CountRows returns the number of rows in a table.
func (g *DB) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := g.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %q", table)).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "gpkg: count %s", table)
	}
	return n, nil
}

// ReadFeatures streams every row of a feature table, decoding the geometry
// blob and passing the requested attribute columns to fn in order. A nil
// geometry reaches fn as nil. fn returning an error stops the scan.
func (g *DB) ReadFeatures(ctx context.Context, table string, cols []string, fn func(geometry geom.T, attrs []any) error) error {
	geomCol, err := g.GeometryColumn(ctx, table)
	if err != nil {
		return err
	}

	sel := make([]string, 0, len(cols)+1)
	sel = append(sel, fmt.Sprintf("%q", geomCol))
	for _, c := range cols {
		sel = append(sel, fmt.Sprintf("%q", c))
	}

	rows, err := g.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %q ORDER BY rowid", strings.Join(sel, ", "), table))
	if err != nil {
		return eris.Wrapf(err, "gpkg: query features from %s", table)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "gpkg: read cancelled")
		}

		dest := make([]any, len(cols)+1)
		var blob []byte
		dest[0] = &blob
		for i := range cols {
			dest[i+1] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return eris.Wrapf(err, "gpkg: scan feature from %s", table)
		}

		var geometry geom.T
		if len(blob) > 0 {
			geometry, _, err = DecodeGPB(blob)
			if err != nil {
				return eris.Wrapf(err, "gpkg: decode geometry from %s", table)
			}
		}

		attrs := make([]any, len(cols))
		for i := range cols {
			attrs[i] = *dest[i+1].(*any)
		}
		if err := fn(geometry, attrs); err != nil {
			return err
		}
	}
	return eris.Wrapf(rows.Err(), "gpkg: iterate features from %s", table)
}
