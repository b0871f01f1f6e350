package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/academicchain/platform/internal/config"
	"github.com/academicchain/platform/internal/model"
	"github.com/academicchain/platform/internal/service"
	"github.com/academicchain/platform/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   *store.Store
	authSvc *service.AuthService
	keySvc  *service.KeyService
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// fully wired Server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New("") // in-memory SQLite
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	authSvc := service.NewAuthService(config.AuthConfig{
		AdminPassword: testPassword,
		JWTSecret:     testJWTSecret,
		SessionTTL:    "24h",
	})
	keySvc := service.NewKeyService(st)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validationSvc := service.NewValidationService(st, logger)

	cfg := DefaultConfig()
	srv := New(cfg, st, authSvc, keySvc, validationSvc, logger)

	return &testEnv{
		server:  srv,
		store:   st,
		authSvc: authSvc,
		keySvc:  keySvc,
	}
}

// sessionCookie logs in as the administrator and returns the session cookie.
func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	body := jsonBody(t, map[string]string{"password": testPassword})
	rr := e.do(t, "POST", "/api/v1/auth/login", body, nil)
	assertStatus(t, rr, http.StatusOK)

	for _, c := range rr.Result().Cookies() {
		if c.Name == "admin_token" && c.Value != "" {
			return c
		}
	}
	t.Fatal("sessionCookie: login set no admin_token cookie")
	return nil
}

// do executes an HTTP request against the test server and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// seedInstitution creates an institution directly in the store.
func (e *testEnv) seedInstitution(t *testing.T, name string, credits int64) *model.Institution {
	t.Helper()
	inst := &model.Institution{Name: name, Plan: "Startup", Credits: credits}
	if err := e.store.CreateInstitution(context.Background(), inst); err != nil {
		t.Fatalf("seedInstitution: %v", err)
	}
	return inst
}

// ---------------------------------------------------------------------------
// Health and spec endpoints
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q, want 3.1.0", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/v1/validate"]; !ok {
		t.Error("spec is missing the validate path")
	}
}

// ---------------------------------------------------------------------------
// Session tests
// ---------------------------------------------------------------------------

func TestLogin_SetsHTTPOnlyCookie(t *testing.T) {
	env := newTestEnv(t)

	body := jsonBody(t, map[string]string{"password": testPassword})
	rr := env.do(t, "POST", "/api/v1/auth/login", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Success bool `json:"success"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.Success {
		t.Error("expected success=true")
	}

	cookies := rr.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == "admin_token" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("no admin_token cookie set")
	}
	if !session.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if !session.Secure {
		t.Error("session cookie should be Secure")
	}
	if session.SameSite != http.SameSiteNoneMode {
		t.Errorf("SameSite = %v, want None", session.SameSite)
	}
	if session.MaxAge != 24*60*60 {
		t.Errorf("MaxAge = %d, want 24h in seconds", session.MaxAge)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)

	body := jsonBody(t, map[string]string{"password": "nope"})
	rr := env.do(t, "POST", "/api/v1/auth/login", body, nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestLogin_MissingPassword(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/auth/login", jsonBody(t, map[string]string{}), nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 50; i++ {
		body := jsonBody(t, map[string]string{"password": "wrong"})
		rr := env.do(t, "POST", "/api/v1/auth/login", body, nil)
		assertStatus(t, rr, http.StatusUnauthorized)
	}

	body := jsonBody(t, map[string]string{"password": "wrong"})
	rr := env.do(t, "POST", "/api/v1/auth/login", body, nil)
	assertStatus(t, rr, http.StatusTooManyRequests)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["message"] != "Too many login attempts, try again later." {
		t.Errorf("message = %q", resp["message"])
	}
}

func TestAuthCheck(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)

	rr := env.do(t, "GET", "/api/v1/auth/check", nil, cookie)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Authenticated bool   `json:"authenticated"`
		User          string `json:"user"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.Authenticated || resp.User != "admin" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/auth/logout", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	for _, c := range rr.Result().Cookies() {
		if c.Name == "admin_token" && c.MaxAge >= 0 {
			t.Errorf("logout cookie MaxAge = %d, want negative", c.MaxAge)
		}
	}
}

func TestAdminRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t)

	// No cookie at all.
	rr := env.do(t, "GET", "/api/v1/institutions", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)

	// A cookie that fails verification.
	bad := &http.Cookie{Name: "admin_token", Value: "not-a-valid-token"}
	rr = env.do(t, "GET", "/api/v1/institutions", nil, bad)
	assertStatus(t, rr, http.StatusForbidden)
}

// ---------------------------------------------------------------------------
// Institution and key management tests
// ---------------------------------------------------------------------------

func TestInstitutionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)

	body := jsonBody(t, map[string]string{"name": "Test University", "plan": "Enterprise"})
	rr := env.do(t, "POST", "/api/v1/institutions", body, cookie)
	assertStatus(t, rr, http.StatusOK)

	var created model.Institution
	decodeJSON(t, rr, &created)
	if created.ID == "" || created.Slug != "test-university" || created.Plan != "Enterprise" {
		t.Errorf("created = %+v", created)
	}
	if created.Status != model.InstitutionActive {
		t.Errorf("status = %q, want active", created.Status)
	}

	rr = env.do(t, "GET", "/api/v1/institutions/"+created.ID, nil, cookie)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/v1/institutions", nil, cookie)
	assertStatus(t, rr, http.StatusOK)
	var list []struct {
		model.Institution
		ActiveKeys int64 `json:"activeKeys"`
	}
	decodeJSON(t, rr, &list)
	if len(list) != 1 || list[0].ActiveKeys != 0 {
		t.Errorf("list = %+v", list)
	}

	rr = env.do(t, "GET", "/api/v1/institutions/does-not-exist", nil, cookie)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestCreateInstitution_MissingName(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)

	rr := env.do(t, "POST", "/api/v1/institutions", jsonBody(t, map[string]string{}), cookie)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestAdjustCredits(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)
	inst := env.seedInstitution(t, "Credit U", 100)

	// Numeric amount, add.
	body := jsonBody(t, map[string]interface{}{"amount": 50, "action": "add"})
	rr := env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/credits", body, cookie)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Success bool  `json:"success"`
		Credits int64 `json:"credits"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Credits != 150 {
		t.Errorf("credits = %d, want 150", resp.Credits)
	}

	// String amount, set. The dashboard sends form input verbatim.
	body = jsonBody(t, map[string]interface{}{"amount": "7", "action": "set"})
	rr = env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/credits", body, cookie)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &resp)
	if resp.Credits != 7 {
		t.Errorf("credits = %d, want 7", resp.Credits)
	}

	body = jsonBody(t, map[string]interface{}{"amount": "not-a-number"})
	rr = env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/credits", body, cookie)
	assertStatus(t, rr, http.StatusBadRequest)

	body = jsonBody(t, map[string]interface{}{"amount": 1})
	rr = env.do(t, "POST", "/api/v1/institutions/missing/credits", body, cookie)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestGenerateKey_RawSecretAppearsOnce(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)
	inst := env.seedInstitution(t, "Key U", 10)

	body := jsonBody(t, map[string]string{"name": "Integration"})
	rr := env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/generate-key", body, cookie)
	assertStatus(t, rr, http.StatusOK)

	var created struct {
		ID              string `json:"id"`
		RawKey          string `json:"apiKey"`
		KeyPrefix       string `json:"keyPrefix"`
		InstitutionName string `json:"institutionName"`
	}
	decodeJSON(t, rr, &created)
	if created.RawKey == "" {
		t.Fatal("expected raw key in the creation response")
	}
	if created.InstitutionName != "Key U" {
		t.Errorf("institutionName = %q", created.InstitutionName)
	}

	// The listing shows the prefix but never the raw key or its digest.
	rr = env.do(t, "GET", "/api/v1/api-keys", nil, cookie)
	assertStatus(t, rr, http.StatusOK)
	listing := rr.Body.String()
	if bytes.Contains([]byte(listing), []byte(created.RawKey)) {
		t.Error("listing leaks the raw key")
	}
	if bytes.Contains([]byte(listing), []byte(store.HashAPIKey(created.RawKey))) {
		t.Error("listing leaks the key digest")
	}
	if !bytes.Contains([]byte(listing), []byte(created.KeyPrefix)) {
		t.Error("listing should show the display prefix")
	}

	rr = env.do(t, "POST", "/api/v1/institutions/missing/generate-key", jsonBody(t, map[string]string{"name": "x"}), cookie)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestRevokeKey_InvalidatesNextValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)
	inst := env.seedInstitution(t, "Revoke U", 10)

	body := jsonBody(t, map[string]string{"name": "doomed"})
	rr := env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/generate-key", body, cookie)
	assertStatus(t, rr, http.StatusOK)
	var created struct {
		ID     string `json:"id"`
		RawKey string `json:"apiKey"`
	}
	decodeJSON(t, rr, &created)

	// Valid before revocation.
	validateBody := jsonBody(t, map[string]string{"hash": store.HashAPIKey(created.RawKey), "endpoint": "/api/verify"})
	rr = env.do(t, "POST", "/api/v1/validate", validateBody, nil)
	assertStatus(t, rr, http.StatusOK)
	var v struct {
		Valid bool `json:"valid"`
	}
	decodeJSON(t, rr, &v)
	if !v.Valid {
		t.Fatal("key should validate before revocation")
	}

	rr = env.do(t, "DELETE", "/api/v1/api-keys/"+created.ID, nil, cookie)
	assertStatus(t, rr, http.StatusOK)

	// Invalid on the very next call.
	validateBody = jsonBody(t, map[string]string{"hash": store.HashAPIKey(created.RawKey), "endpoint": "/api/verify"})
	rr = env.do(t, "POST", "/api/v1/validate", validateBody, nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &v)
	if v.Valid {
		t.Error("revoked key still validates")
	}

	rr = env.do(t, "DELETE", "/api/v1/api-keys/"+created.ID, nil, cookie)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Validation endpoint tests
// ---------------------------------------------------------------------------

func TestValidate_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)
	inst := env.seedInstitution(t, "Issuer U", 2)

	rr := env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/generate-key", jsonBody(t, map[string]string{"name": "issuer"}), cookie)
	assertStatus(t, rr, http.StatusOK)
	var created struct {
		RawKey string `json:"apiKey"`
	}
	decodeJSON(t, rr, &created)
	digest := store.HashAPIKey(created.RawKey)

	var v struct {
		Valid            bool   `json:"valid"`
		Institution      string `json:"institution"`
		RemainingCredits *int64 `json:"remainingCredits"`
		Message          string `json:"message"`
	}

	// First issuance debits one credit.
	rr = env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"hash": digest, "endpoint": "/api/emissions"}), nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &v)
	if !v.Valid || v.Institution != "Issuer U" || v.RemainingCredits == nil || *v.RemainingCredits != 1 {
		t.Errorf("first issuance = %+v", v)
	}

	// Second exhausts the balance.
	rr = env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"hash": digest, "endpoint": "/api/emissions"}), nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &v)
	if !v.Valid || v.RemainingCredits == nil || *v.RemainingCredits != 0 {
		t.Errorf("second issuance = %+v", v)
	}

	// Third is denied with the fixed no-credits message, still HTTP 200.
	rr = env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"hash": digest, "endpoint": "/api/emissions"}), nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &v)
	if v.Valid {
		t.Error("expected denial after exhaustion")
	}
	if v.Message != "Credits exhausted. Contact support to top up." {
		t.Errorf("message = %q", v.Message)
	}
}

func TestValidate_UnknownKeyGivesNoMessage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"hash": store.HashAPIKey("ac_live_bogus"), "endpoint": "/api/emissions"}), nil)
	assertStatus(t, rr, http.StatusOK)

	var v struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	decodeJSON(t, rr, &v)
	if v.Valid {
		t.Error("unknown digest should be invalid")
	}
	if v.Message != "" {
		t.Errorf("message = %q, want none for unknown keys", v.Message)
	}
}

func TestValidate_MissingHash(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"endpoint": "/api/emissions"}), nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

// ---------------------------------------------------------------------------
// Logs and overview tests
// ---------------------------------------------------------------------------

func TestLogs_JoinInstitutionNames(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)
	inst := env.seedInstitution(t, "Logged U", 10)

	rr := env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/generate-key", jsonBody(t, map[string]string{"name": "logger"}), cookie)
	assertStatus(t, rr, http.StatusOK)
	var created struct {
		RawKey string `json:"apiKey"`
	}
	decodeJSON(t, rr, &created)

	// One admitted call and one unknown-digest failure.
	env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"hash": store.HashAPIKey(created.RawKey), "endpoint": "/api/verify"}), nil)
	env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"hash": store.HashAPIKey("ac_live_nope"), "endpoint": "/api/verify"}), nil)

	rr = env.do(t, "GET", "/api/v1/logs", nil, cookie)
	assertStatus(t, rr, http.StatusOK)

	var logs []struct {
		InstitutionID   *string `json:"institutionId"`
		InstitutionName *string `json:"institutionName"`
		Status          string  `json:"status"`
	}
	decodeJSON(t, rr, &logs)
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}

	named, anonymous := 0, 0
	for _, l := range logs {
		if l.InstitutionName != nil {
			if *l.InstitutionName != "Logged U" {
				t.Errorf("institutionName = %q", *l.InstitutionName)
			}
			named++
		} else {
			if l.Status != model.AuditFailed {
				t.Errorf("anonymous entry status = %q, want failed", l.Status)
			}
			anonymous++
		}
	}
	if named != 1 || anonymous != 1 {
		t.Errorf("named = %d anonymous = %d, want 1/1", named, anonymous)
	}
}

func TestOverview(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)
	inst := env.seedInstitution(t, "Overview U", 5)

	rr := env.do(t, "POST", "/api/v1/institutions/"+inst.ID+"/generate-key", jsonBody(t, map[string]string{"name": "ov"}), cookie)
	assertStatus(t, rr, http.StatusOK)
	var created struct {
		ID     string `json:"id"`
		RawKey string `json:"apiKey"`
	}
	decodeJSON(t, rr, &created)

	// One issuance, then revoke the key.
	env.do(t, "POST", "/api/v1/validate", jsonBody(t, map[string]string{"hash": store.HashAPIKey(created.RawKey), "endpoint": "/api/emissions"}), nil)
	rr = env.do(t, "DELETE", "/api/v1/api-keys/"+created.ID, nil, cookie)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/v1/overview", nil, cookie)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		TotalEmissions     int64 `json:"totalEmissions"`
		RevokedCount       int64 `json:"revokedCount"`
		ActiveInstitutions int64 `json:"activeInstitutions"`
		HbarBalance        int64 `json:"hbarBalance"`
		UsageSeries        []struct {
			Label string `json:"label"`
			Value int64  `json:"value"`
		} `json:"usageSeries"`
		ByInstitution []struct {
			Name     string `json:"name"`
			Requests int64  `json:"requests"`
		} `json:"byInstitution"`
	}
	decodeJSON(t, rr, &resp)

	if resp.TotalEmissions != 1 {
		t.Errorf("totalEmissions = %d, want 1", resp.TotalEmissions)
	}
	if resp.RevokedCount != 1 {
		t.Errorf("revokedCount = %d, want 1", resp.RevokedCount)
	}
	if resp.ActiveInstitutions != 1 {
		t.Errorf("activeInstitutions = %d, want 1", resp.ActiveInstitutions)
	}
	if resp.HbarBalance != 12500 {
		t.Errorf("hbarBalance = %d, want 12500", resp.HbarBalance)
	}
	if len(resp.UsageSeries) != 1 || resp.UsageSeries[0].Value != 1 {
		t.Errorf("usageSeries = %+v", resp.UsageSeries)
	}
	if len(resp.ByInstitution) != 1 || resp.ByInstitution[0].Name != "Overview U" || resp.ByInstitution[0].Requests != 1 {
		t.Errorf("byInstitution = %+v", resp.ByInstitution)
	}
}
