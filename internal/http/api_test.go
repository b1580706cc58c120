package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scorpion-security/hub/internal/ai"
	"github.com/scorpion-security/hub/internal/config"
	"github.com/scorpion-security/hub/internal/db"
	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/security"
	"github.com/scorpion-security/hub/internal/store"
	"github.com/scorpion-security/hub/internal/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	engine     *gin.Engine
	st         store.Store
	cfg        *config.Config
	superID    int64
	superToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errSeed := db.Seed(conn); errSeed != nil {
		t.Fatalf("seed: %v", errSeed)
	}

	cfg := &config.Config{
		Port:       "0",
		JWTSecret:  "test-secret",
		BcryptCost: 4,
	}
	st := store.NewSQL(conn)

	env := &testEnv{
		engine: NewRouter(cfg, st, ai.NewResponder(config.AIConfig{})),
		st:     st,
		cfg:    cfg,
	}
	env.superID = env.createUser(t, "root", "root-pass", "root@example.com", models.RoleAdmin, true)
	env.superToken = env.tokenFor(t, env.superID, "root", models.RoleAdmin, true)
	return env
}

func (e *testEnv) createUser(t *testing.T, username, password, email, role string, super bool) int64 {
	t.Helper()
	hash, errHash := security.HashPassword(password, e.cfg.BcryptCost)
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	id, errCreate := e.st.Insert(context.Background(), models.TableUsers, store.Row{
		"username":       username,
		"password_hash":  hash,
		"email":          email,
		"role":           role,
		"is_super_admin": super,
		"created_at":     time.Now().UTC(),
	})
	if errCreate != nil {
		t.Fatalf("create user %s: %v", username, errCreate)
	}
	return id
}

func (e *testEnv) tokenFor(t *testing.T, id int64, username, role string, super bool) string {
	t.Helper()
	token, errSign := security.GenerateToken(e.cfg.JWTSecret, id, username, role, super)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "UP" || body["backend"] != "sqlite" || body["service"] != "scorpion-security-hub" {
		t.Fatalf("body = %v", body)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice", "email": "alice@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	user := body["user"].(map[string]any)
	if user["role"] != "user" || util.AsBool(user["is_super_admin"]) {
		t.Fatalf("self-registration must not grant privileges: %v", user)
	}

	// Same username again conflicts.
	rec = env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice", "email": "other@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	body = decode(t, rec)
	if body["token"] == nil || body["token"] == "" {
		t.Fatal("missing token")
	}

	// Email works as the identifier too.
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"identifier": "alice@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login by email status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Invalid credentials" {
		t.Fatalf("error = %v", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "bob", "email": "bob@example.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "bob", "password": "pw",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing email status = %d", rec.Code)
	}

	// firstName/lastName can stand in for a username.
	rec = env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"firstName": "Bob", "lastName": "Reed", "email": "bob@example.com", "password": "pw",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("name-based register status = %d: %s", rec.Code, rec.Body.String())
	}
	user := decode(t, rec)["user"].(map[string]any)
	if user["username"] != "Bob Reed" {
		t.Fatalf("username = %v", user["username"])
	}
}

func TestTwoFactorLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/admin/register", env.superToken, gin.H{
		"username": "opslead", "password": "pw12345", "role": "admin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin register status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	twoFactor, ok := body["twoFactor"].(map[string]any)
	if !ok {
		t.Fatalf("missing twoFactor in %v", body)
	}
	secret := twoFactor["secret"].(string)
	if secret == "" {
		t.Fatal("empty totp secret")
	}
	if qr, _ := twoFactor["qrCode"].(string); len(qr) < 30 || qr[:22] != "data:image/png;base64," {
		t.Fatalf("qrCode = %.40q", qr)
	}

	// Without a code the login is refused and the client is told to prompt.
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "opslead", "password": "pw12345",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("2fa-less login status = %d", rec.Code)
	}
	body = decode(t, rec)
	if body["error"] != "2FA token required" || body["require2fa"] != true {
		t.Fatalf("body = %v", body)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "opslead", "password": "pw12345", "token": "000000",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad code status = %d", rec.Code)
	}

	code, errCode := totp.GenerateCode(secret, time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "opslead", "password": "pw12345", "token": code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("2fa login status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSuperAdminGuard(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/admin/users", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	userID := env.createUser(t, "plain", "pw", "plain@example.com", models.RoleUser, false)
	userToken := env.tokenFor(t, userID, "plain", models.RoleUser, false)
	if rec := env.do(t, http.MethodGet, "/api/admin/users", userToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("user token status = %d", rec.Code)
	}

	// An admin without the super flag is still refused.
	adminID := env.createUser(t, "midadmin", "pw", "mid@example.com", models.RoleAdmin, false)
	adminToken := env.tokenFor(t, adminID, "midadmin", models.RoleAdmin, false)
	if rec := env.do(t, http.MethodGet, "/api/admin/users", adminToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("plain admin status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/admin/users", env.superToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("super status = %d", rec.Code)
	}
	users := decode(t, rec)["users"].([]any)
	if len(users) != 3 {
		t.Fatalf("users = %d, want 3", len(users))
	}
	for _, raw := range users {
		user := raw.(map[string]any)
		if _, leaked := user["password_hash"]; leaked {
			t.Fatal("password hash leaked")
		}
		if _, leaked := user["two_factor_secret"]; leaked {
			t.Fatal("totp secret leaked")
		}
	}
}

func TestLastSuperAdminDemotion(t *testing.T) {
	env := newTestEnv(t)

	path := fmt.Sprintf("/api/admin/users/%d/role", env.superID)
	rec := env.do(t, http.MethodPatch, path, env.superToken, gin.H{
		"role": "admin", "is_super_admin": false,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("demotion status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["error"]; got != "Cannot remove the last super admin" {
		t.Fatalf("error = %v", got)
	}

	// With a second super admin present the demotion goes through.
	env.createUser(t, "root2", "pw", "root2@example.com", models.RoleAdmin, true)
	rec = env.do(t, http.MethodPatch, path, env.superToken, gin.H{
		"role": "admin", "is_super_admin": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second demotion status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", env.superID), env.superToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self delete status = %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Cannot delete your own account" {
		t.Fatalf("error = %v", got)
	}

	victimID := env.createUser(t, "victim", "pw", "victim@example.com", models.RoleUser, false)
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", victimID), env.superToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", victimID), env.superToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "extra", "pw", "extra@example.com", models.RoleUser, false)

	rec := env.do(t, http.MethodGet, "/api/admin/stats", env.superToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	stats := decode(t, rec)["stats"].(map[string]any)
	if total, _ := util.AsInt64(stats["totalUsers"]); total != 2 {
		t.Fatalf("totalUsers = %v", stats["totalUsers"])
	}
	if supers, _ := util.AsInt64(stats["totalSuperAdmins"]); supers != 1 {
		t.Fatalf("totalSuperAdmins = %v", stats["totalSuperAdmins"])
	}
}

func TestVerifyAndChangePassword(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, "carol", "old-pass", "carol@example.com", models.RoleUser, false)
	token := env.tokenFor(t, userID, "carol", models.RoleUser, false)

	rec := env.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}
	user := decode(t, rec)["user"].(map[string]any)
	if user["username"] != "carol" {
		t.Fatalf("user = %v", user)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/change-password", token, gin.H{
		"currentPassword": "wrong", "newPassword": "new-pass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/change-password", token, gin.H{
		"currentPassword": "old-pass", "newPassword": "new-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "carol", "password": "new-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password status = %d", rec.Code)
	}

	// A deleted account stops verifying even with a live token.
	if _, errDelete := env.st.Delete(context.Background(), models.TableUsers, userID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if rec := env.do(t, http.MethodGet, "/api/auth/verify", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("verify after delete status = %d", rec.Code)
	}
}

func TestLibraryCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/library", "", gin.H{
		"title": "Zero Trust Field Guide", "type": "pamphlet", "author": "Reed",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid type status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/library", "", gin.H{
		"title":  "Zero Trust Field Guide",
		"type":   "ebook",
		"author": "Reed",
		"url":    "https://example.com/zt.pdf",
		"tags":   []string{"zero-trust", "architecture"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	item := decode(t, rec)["item"].(map[string]any)
	if item["tags"] != "zero-trust,architecture" {
		t.Fatalf("tags = %v", item["tags"])
	}
	if !util.AsBool(item["is_online"]) {
		t.Fatal("item with url should be online")
	}
	itemID, _ := util.AsInt64(item["id"])

	// Offline item: no url.
	rec = env.do(t, http.MethodPost, "/api/library", "", gin.H{
		"title": "Malware RE Workbook", "type": "whitepaper", "author": "Cole", "tags": "malware",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("offline create status = %d", rec.Code)
	}
	offline := decode(t, rec)["item"].(map[string]any)
	if util.AsBool(offline["is_online"]) {
		t.Fatal("item without url should be offline")
	}

	rec = env.do(t, http.MethodGet, "/api/library?type=ebook&search=ZERO", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	items := decode(t, rec)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("filtered list = %d items", len(items))
	}

	// Filter and search intersect: ebook filter with a whitepaper-only term.
	rec = env.do(t, http.MethodGet, "/api/library?type=ebook&search=malware", "", nil)
	if got := decode(t, rec)["items"].([]any); len(got) != 0 {
		t.Fatalf("intersection should be empty, got %d", len(got))
	}

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/library/%d", itemID), "", gin.H{
		"title": "Zero Trust Field Guide, 2nd ed", "type": "ebook", "author": "Reed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode(t, rec)["item"].(map[string]any)
	if util.AsBool(updated["is_online"]) {
		t.Fatal("update removed the url, item should now be offline")
	}

	rec = env.do(t, http.MethodGet, "/api/library/stats/overview", "", nil)
	stats := decode(t, rec)["stats"].(map[string]any)
	if total, _ := util.AsInt64(stats["totalItems"]); total != 2 {
		t.Fatalf("totalItems = %v", stats["totalItems"])
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/library/%d", itemID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/library/%d", itemID), "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestResearchFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/research", "", gin.H{
		"title":           "APT tracking",
		"status":          "active",
		"type":            "online",
		"lead_researcher": "Dana Cole",
		"collaborators": []gin.H{
			{"researcher_name": "Lee Park", "role": "analyst", "email": "lee@example.com"},
			{"researcher_name": "   "},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	project := decode(t, rec)["project"].(map[string]any)
	projectID, _ := util.AsInt64(project["id"])

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/research/%d", projectID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	project = decode(t, rec)["project"].(map[string]any)
	collaborators := project["collaborators"].([]any)
	if len(collaborators) != 1 {
		t.Fatalf("collaborators = %d, want 1 (blank entries skipped)", len(collaborators))
	}

	// Progress bounds.
	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/research/%d/progress", projectID), "", gin.H{"progress": 150})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("progress 150 status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/research/%d/progress", projectID), "", gin.H{"progress": 50})
	if rec.Code != http.StatusOK {
		t.Fatalf("progress 50 status = %d: %s", rec.Code, rec.Body.String())
	}
	project = decode(t, rec)["project"].(map[string]any)
	if progress, _ := util.AsInt64(project["progress"]); progress != 50 {
		t.Fatalf("progress = %v", project["progress"])
	}

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/research/%d/collaborators", projectID), "", gin.H{
		"researcher_name": "Sam Ortiz", "role": "reviewer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add collaborator status = %d: %s", rec.Code, rec.Body.String())
	}
	collaborator := decode(t, rec)["collaborator"].(map[string]any)
	collaboratorID, _ := util.AsInt64(collaborator["id"])

	// Removal is scoped to the owning project.
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/research/%d/collaborators/%d", projectID+1, collaboratorID), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-project removal status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/research/%d/collaborators/%d", projectID, collaboratorID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("removal status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/research/stats/overview", "", nil)
	stats := decode(t, rec)["stats"].(map[string]any)
	if total, _ := util.AsInt64(stats["totalProjects"]); total != 1 {
		t.Fatalf("totalProjects = %v", stats["totalProjects"])
	}
	if avg, _ := util.AsInt64(stats["averageProgress"]); avg != 50 {
		t.Fatalf("averageProgress = %v", stats["averageProgress"])
	}
	// Lead plus the one remaining collaborator.
	if researchers, _ := util.AsInt64(stats["totalResearchers"]); researchers != 2 {
		t.Fatalf("totalResearchers = %v", stats["totalResearchers"])
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/research/%d", projectID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestResearchValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/research", "", gin.H{
		"title": "X", "status": "paused", "type": "online", "lead_researcher": "R",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/research", "", gin.H{
		"title": "X", "status": "active", "type": "hybrid", "lead_researcher": "R",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/research", "", gin.H{
		"title": "X", "status": "active", "type": "online",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing lead, got %d", rec.Code)
	}
}

func TestIncidentLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/incidents", "", gin.H{"title": "Breach"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing severity status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/incidents", "", gin.H{
		"title": "Breach", "severity": "extreme",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad severity status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/incidents", "", gin.H{
		"title": "Breach", "severity": "high", "assignedTo": "SOC Team",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	incident := decode(t, rec)
	if incident["status"] != "OPEN" || incident["severity"] != "HIGH" {
		t.Fatalf("incident = %v", incident)
	}
	if incident["assignedTo"] != "SOC Team" {
		t.Fatalf("assignedTo = %v", incident["assignedTo"])
	}
	if incident["reportedAt"] == nil {
		t.Fatal("missing reportedAt")
	}
	incidentID, _ := util.AsInt64(incident["id"])

	// Status arrives lowercase in the query string.
	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/incidents/%d/status?status=investigating", incidentID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["status"]; got != "INVESTIGATING" {
		t.Fatalf("status = %v", got)
	}

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/incidents/%d/status", incidentID), "", gin.H{"status": "ARCHIVED"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status transition status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/incidents?status=INVESTIGATING", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	for _, item := range decodeList(t, rec) {
		if item["status"] != "INVESTIGATING" {
			t.Fatalf("filter leaked status %v", item["status"])
		}
	}

	rec = env.do(t, http.MethodPatch, "/api/incidents/99999/status?status=CLOSED", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing incident status = %d", rec.Code)
	}
}

func TestIncidentTruncation(t *testing.T) {
	env := newTestEnv(t)

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	rec := env.do(t, http.MethodPost, "/api/incidents", "", gin.H{
		"title": string(long), "severity": "LOW",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	title := decode(t, rec)["title"].(string)
	if len(title) != 255 {
		t.Fatalf("title length = %d, want 255", len(title))
	}
}

func TestThreatFeeds(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/threat-intelligence/feeds", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	feeds := decodeList(t, rec)
	if len(feeds) != 5 {
		t.Fatalf("feeds = %d, want 5 seeded", len(feeds))
	}
	first := feeds[0]
	if first["source"] == "" || first["publishedAt"] == nil {
		t.Fatalf("feed shape = %v", first)
	}

	feedID, _ := util.AsInt64(first["id"])
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/threat-intelligence/feeds/%d", feedID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodGet, "/api/threat-intelligence/feeds/99999", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing feed status = %d", rec.Code)
	}
}

func TestAIChat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "", gin.H{"message": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/ai/chat", "", gin.H{"message": "how do I handle phishing?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}
	if reply, _ := decode(t, rec)["reply"].(string); reply == "" {
		t.Fatal("empty reply")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/auth/verify", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", rec.Code)
	}
}
