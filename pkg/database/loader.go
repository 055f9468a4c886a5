package database

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"deposit-tracking/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/gommon/log"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Open accepts mariadb:// or mysql:// URLs as well as native driver DSNs.
func Open(dsn string) (*sql.DB, string, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, mysqlDSN, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("incomplete dsn (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// LoadTable reads a whole table as strings, columns discovered at scan
// time. The source tables are TEXT-typed throughout, so no driver-side
// typing is wanted here.
func LoadTable(ctx context.Context, db *sql.DB, table string) (models.RawTable, error) {
	if !tableNameRe.MatchString(table) {
		return models.RawTable{}, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return models.RawTable{}, err
	}
	raw := models.RawTable{Columns: cols}

	vals := make([]sql.RawBytes, len(cols))
	scan := make([]any, len(cols))
	for i := range vals {
		scan[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return models.RawTable{}, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = string(v)
		}
		raw.Rows = append(raw.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return models.RawTable{}, err
	}
	return raw, nil
}

// LoadCSV reads a snapshot export. First record is the header; ragged
// rows are tolerated since the sheets the snapshots come from are.
func LoadCSV(path string) (models.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.RawTable{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return models.RawTable{}, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(all) == 0 {
		return models.RawTable{}, nil
	}
	return models.RawTable{Columns: all[0], Rows: all[1:]}, nil
}

// LoadWithFallback tries the live table first and falls back to the CSV
// snapshot when the database is unreachable. The caller always gets a
// table (possibly stale); a hard error only means both sources failed.
func LoadWithFallback(ctx context.Context, db *sql.DB, table, csvPath string) (models.RawTable, error) {
	if db != nil {
		raw, err := LoadTable(ctx, db, table)
		if err == nil {
			log.Infof("[Loader] %d rows from table %s", len(raw.Rows), table)
			return raw, nil
		}
		log.Warnf("[Loader] table %s unavailable, using snapshot %s: %v", table, csvPath, err)
	}
	raw, err := LoadCSV(csvPath)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("load snapshot %s: %w", csvPath, err)
	}
	log.Infof("[Loader] %d rows from snapshot %s", len(raw.Rows), csvPath)
	return raw, nil
}
