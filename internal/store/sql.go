package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm"

	dbutil "github.com/scorpion-security/hub/internal/db"
	"github.com/scorpion-security/hub/internal/models"
)

// identPattern guards table and column names interpolated into SQL text.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sqlStore implements Store by translating the record operations into
// parameterized SQL against a gorm connection. Concurrent writers serialize
// through the engine's own locking.
type sqlStore struct {
	conn *gorm.DB
}

// NewSQL wraps a gorm connection in the record-store interface.
func NewSQL(conn *gorm.DB) Store {
	return &sqlStore{conn: conn}
}

func (s *sqlStore) Kind() string {
	return dbutil.DialectName(s.conn)
}

func (s *sqlStore) Ping(ctx context.Context) error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *sqlStore) Get(ctx context.Context, table string, id int64) (Row, error) {
	if errIdent := checkIdent(table); errIdent != nil {
		return nil, errIdent
	}
	// gorm scans rows into the exact map[string]interface{} type only.
	row := map[string]any{}
	errFind := s.conn.WithContext(ctx).Table(table).Where("id = ?", id).Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(table, errFind)
	}
	return Row(row), nil
}

func (s *sqlStore) List(ctx context.Context, table string, q Query) ([]Row, error) {
	if errIdent := checkIdent(table); errIdent != nil {
		return nil, errIdent
	}
	tx := s.conn.WithContext(ctx).Table(table)

	for _, column := range sortedKeys(q.Filters) {
		if errIdent := checkIdent(column); errIdent != nil {
			return nil, errIdent
		}
		value := q.Filters[column]
		if values, ok := asSlice(value); ok {
			tx = tx.Where(fmt.Sprintf("%s IN ?", column), values)
			continue
		}
		tx = tx.Where(fmt.Sprintf("%s = ?", column), value)
	}

	if q.Search != nil && strings.TrimSpace(q.Search.Term) != "" && len(q.Search.Columns) > 0 {
		exprs := make([]string, 0, len(q.Search.Columns))
		args := make([]any, 0, len(q.Search.Columns))
		pattern := dbutil.NormalizeLikePattern(s.conn, "%"+strings.TrimSpace(q.Search.Term)+"%")
		for _, column := range q.Search.Columns {
			if errIdent := checkIdent(column); errIdent != nil {
				return nil, errIdent
			}
			exprs = append(exprs, dbutil.CaseInsensitiveLikeExpr(s.conn, column))
			args = append(args, pattern)
		}
		tx = tx.Where("("+strings.Join(exprs, " OR ")+")", args...)
	}

	if q.OrderBy != "" {
		if errIdent := checkIdent(q.OrderBy); errIdent != nil {
			return nil, errIdent
		}
		direction := "DESC"
		if q.Ascending {
			direction = "ASC"
		}
		tx = tx.Order(q.OrderBy + " " + direction)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var raw []map[string]any
	if errFind := tx.Find(&raw).Error; errFind != nil {
		return nil, storeError(table, errFind)
	}
	rows := make([]Row, len(raw))
	for i, item := range raw {
		rows[i] = Row(item)
	}
	return rows, nil
}

func (s *sqlStore) Insert(ctx context.Context, table string, fields Row) (int64, error) {
	if errIdent := checkIdent(table); errIdent != nil {
		return 0, errIdent
	}
	if len(fields) == 0 {
		return 0, storeError(table, fmt.Errorf("no fields to insert"))
	}

	columns := sortedKeys(fields)
	placeholders := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		if errIdent := checkIdent(column); errIdent != nil {
			return 0, errIdent
		}
		placeholders = append(placeholders, "?")
		args = append(args, fields[column])
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
	var id int64
	if errExec := s.conn.WithContext(ctx).Raw(stmt, args...).Scan(&id).Error; errExec != nil {
		if isUniqueViolation(errExec) {
			return 0, ErrConflict
		}
		return 0, storeError(table, errExec)
	}
	return id, nil
}

func (s *sqlStore) Update(ctx context.Context, table string, id int64, fields Row) (int64, error) {
	if errIdent := checkIdent(table); errIdent != nil {
		return 0, errIdent
	}
	if len(fields) == 0 {
		return 0, storeError(table, fmt.Errorf("no fields to update"))
	}
	for _, column := range sortedKeys(fields) {
		if errIdent := checkIdent(column); errIdent != nil {
			return 0, errIdent
		}
	}

	res := s.conn.WithContext(ctx).Table(table).Where("id = ?", id).Updates(map[string]any(fields))
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return 0, ErrConflict
		}
		return 0, storeError(table, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *sqlStore) Delete(ctx context.Context, table string, id int64) (int64, error) {
	if errIdent := checkIdent(table); errIdent != nil {
		return 0, errIdent
	}
	res := s.conn.WithContext(ctx).Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if res.Error != nil {
		return 0, storeError(table, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *sqlStore) Count(ctx context.Context, table string, filters map[string]any) (int64, error) {
	if errIdent := checkIdent(table); errIdent != nil {
		return 0, errIdent
	}
	tx := s.conn.WithContext(ctx).Table(table)
	for _, column := range sortedKeys(filters) {
		if errIdent := checkIdent(column); errIdent != nil {
			return 0, errIdent
		}
		tx = tx.Where(fmt.Sprintf("%s = ?", column), filters[column])
	}
	var count int64
	if errCount := tx.Count(&count).Error; errCount != nil {
		return 0, storeError(table, errCount)
	}
	return count, nil
}

func (s *sqlStore) UserByUsername(ctx context.Context, username string) (Row, error) {
	return s.userBy(ctx, "username", username)
}

func (s *sqlStore) UserByEmail(ctx context.Context, email string) (Row, error) {
	return s.userBy(ctx, "email", email)
}

func (s *sqlStore) userBy(ctx context.Context, column, value string) (Row, error) {
	row := map[string]any{}
	errFind := s.conn.WithContext(ctx).Table(models.TableUsers).
		Where(fmt.Sprintf("%s = ?", column), value).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(models.TableUsers, errFind)
	}
	return Row(row), nil
}

// checkIdent rejects table/column names that are not plain identifiers.
func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("store: invalid identifier %q", name)
	}
	return nil
}

// sortedKeys returns map keys in stable order so generated SQL is
// deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// asSlice reports whether a filter value is a slice and flattens it.
func asSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	case []int64:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

// isUniqueViolation detects uniqueness failures across both SQL dialects.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "23505")
}
