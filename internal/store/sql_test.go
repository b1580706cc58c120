package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scorpion-security/hub/internal/db"
	"github.com/scorpion-security/hub/internal/models"
)

func newSQLStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:store_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewSQL(conn)
}

func TestSQLStoreInsertGet(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()

	id, errCreate := st.Insert(ctx, models.TableUsers, Row{
		"username":       "alice",
		"password_hash":  "x",
		"email":          "alice@example.com",
		"role":           "user",
		"is_super_admin": false,
		"created_at":     time.Now().UTC(),
	})
	if errCreate != nil {
		t.Fatalf("insert: %v", errCreate)
	}
	if id <= 0 {
		t.Fatalf("expected generated id, got %d", id)
	}

	row, errGet := st.Get(ctx, models.TableUsers, id)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if got := row["username"]; got != "alice" {
		t.Fatalf("username = %v, want alice", got)
	}
}

func TestSQLStoreGetNotFound(t *testing.T) {
	st := newSQLStore(t)
	if _, errGet := st.Get(context.Background(), models.TableUsers, 9999); !errors.Is(errGet, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errGet)
	}
}

func TestSQLStoreUniqueConflict(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()

	row := Row{"username": "bob", "password_hash": "x", "role": "user", "created_at": time.Now().UTC()}
	if _, errFirst := st.Insert(ctx, models.TableUsers, row); errFirst != nil {
		t.Fatalf("first insert: %v", errFirst)
	}
	if _, errSecond := st.Insert(ctx, models.TableUsers, row); !errors.Is(errSecond, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", errSecond)
	}
}

func TestSQLStoreListFiltersAndSearchIntersect(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	items := []Row{
		{"title": "Malware Analysis Primer", "type": "ebook", "author": "Reed", "tags": "malware,reversing", "is_online": true, "created_at": now, "updated_at": now},
		{"title": "Phishing Trends 2026", "type": "article", "author": "Reed", "tags": "phishing", "is_online": true, "created_at": now, "updated_at": now},
		{"title": "Malware Trends 2026", "type": "article", "author": "Cole", "tags": "malware", "is_online": false, "created_at": now, "updated_at": now},
	}
	for _, item := range items {
		if _, errCreate := st.Insert(ctx, models.TableLibrary, item); errCreate != nil {
			t.Fatalf("insert: %v", errCreate)
		}
	}

	rows, errList := st.List(ctx, models.TableLibrary, Query{
		Filters: map[string]any{"type": "article"},
		Search:  &Search{Term: "MALWARE", Columns: []string{"title", "author", "description", "tags"}},
	})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if got := rows[0]["title"]; got != "Malware Trends 2026" {
		t.Fatalf("title = %v", got)
	}
}

func TestSQLStoreListInFilter(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, status := range []string{"active", "pending", "archived"} {
		_, errCreate := st.Insert(ctx, models.TableResearch, Row{
			"title": "p-" + status, "status": status, "type": "online",
			"lead_researcher": "Reed", "progress": 10, "created_at": now, "updated_at": now,
		})
		if errCreate != nil {
			t.Fatalf("insert: %v", errCreate)
		}
	}

	rows, errList := st.List(ctx, models.TableResearch, Query{
		Filters: map[string]any{"status": []string{"active", "pending"}},
	})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestSQLStoreListEmptyIsNotError(t *testing.T) {
	st := newSQLStore(t)
	rows, errList := st.List(context.Background(), models.TableLibrary, Query{
		Filters: map[string]any{"type": "whitepaper"},
	})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty result, got %d rows", len(rows))
	}
}

func TestSQLStoreUpdateDelete(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()

	id, errCreate := st.Insert(ctx, models.TableIncidents, Row{
		"title": "Recon scan", "severity": "LOW", "status": "OPEN",
		"reported_at": time.Now().UTC(), "updated_at": time.Now().UTC(),
	})
	if errCreate != nil {
		t.Fatalf("insert: %v", errCreate)
	}

	affected, errUpdate := st.Update(ctx, models.TableIncidents, id, Row{"status": "RESOLVED"})
	if errUpdate != nil || affected != 1 {
		t.Fatalf("update affected=%d err=%v", affected, errUpdate)
	}
	if affected, _ = st.Update(ctx, models.TableIncidents, id+100, Row{"status": "CLOSED"}); affected != 0 {
		t.Fatalf("update of missing row affected %d", affected)
	}

	if affected, errDelete := st.Delete(ctx, models.TableIncidents, id); errDelete != nil || affected != 1 {
		t.Fatalf("delete affected=%d err=%v", affected, errDelete)
	}
	if affected, _ := st.Delete(ctx, models.TableIncidents, id); affected != 0 {
		t.Fatalf("second delete affected rows")
	}
}

func TestSQLStoreCount(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		role := "user"
		if i == 0 {
			role = "admin"
		}
		_, errCreate := st.Insert(ctx, models.TableUsers, Row{
			"username": fmt.Sprintf("u%d", i), "password_hash": "x", "role": role, "created_at": now,
		})
		if errCreate != nil {
			t.Fatalf("insert: %v", errCreate)
		}
	}

	total, errTotal := st.Count(ctx, models.TableUsers, nil)
	if errTotal != nil || total != 3 {
		t.Fatalf("count all = %d err=%v", total, errTotal)
	}
	admins, errAdmins := st.Count(ctx, models.TableUsers, map[string]any{"role": "admin"})
	if errAdmins != nil || admins != 1 {
		t.Fatalf("count admins = %d err=%v", admins, errAdmins)
	}
}

func TestSQLStoreUserLookups(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()

	_, errCreate := st.Insert(ctx, models.TableUsers, Row{
		"username": "carol", "password_hash": "x", "email": "carol@example.com",
		"role": "user", "created_at": time.Now().UTC(),
	})
	if errCreate != nil {
		t.Fatalf("insert: %v", errCreate)
	}

	if row, errFind := st.UserByUsername(ctx, "carol"); errFind != nil || row["username"] != "carol" {
		t.Fatalf("by username: row=%v err=%v", row, errFind)
	}
	if row, errFind := st.UserByEmail(ctx, "carol@example.com"); errFind != nil || row["username"] != "carol" {
		t.Fatalf("by email: row=%v err=%v", row, errFind)
	}
	if _, errFind := st.UserByUsername(ctx, "nobody"); !errors.Is(errFind, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errFind)
	}
}

func TestSQLStoreRejectsBadIdentifiers(t *testing.T) {
	st := newSQLStore(t)
	ctx := context.Background()

	if _, errGet := st.Get(ctx, "users; DROP TABLE users", 1); errGet == nil {
		t.Fatal("expected identifier rejection")
	}
	if _, errCreate := st.Insert(ctx, models.TableUsers, Row{"username": "z", "bad-col": 1}); errCreate == nil {
		t.Fatal("expected column rejection")
	}
}
