package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/events"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/middleware"
	"github.com/Nzyazin/cryptovault/internal/core/repository/memory"
	"github.com/Nzyazin/cryptovault/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.ServerConfig{
		Addr:      ":0",
		Storage:   config.StorageMemory,
		JWTSecret: testSecret,
	}
	s := New(cfg, memory.NewStore(), events.NopPublisher{}, logger.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func token(t *testing.T, secret string, userID uuid.UUID, role string) string {
	t.Helper()
	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func call(t *testing.T, ts *httptest.Server, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()

	code, env := call(t, ts, http.MethodGet, "/api/v1/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = call(t, ts, http.MethodGet, "/api/v1/wallet/balance", token(t, "other-secret", user, middleware.RoleUser), nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = call(t, ts, http.MethodGet, "/api/v1/admin/crypto-addresses", token(t, testSecret, user, middleware.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Admin access required", env.Message)
}

func TestUserFlowWithAdminDecisions(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()
	userToken := token(t, testSecret, user, middleware.RoleUser)
	adminToken := token(t, testSecret, uuid.New(), middleware.RoleAdmin)

	code, env := call(t, ts, http.MethodPost, "/api/v1/admin/wallets", adminToken,
		map[string]string{"userId": user.String()})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = call(t, ts, http.MethodPost, "/api/v1/admin/users/"+user.String()+"/fund", adminToken,
		map[string]interface{}{"cryptocurrency": "bitcoin", "amount": "100"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = call(t, ts, http.MethodPost, "/api/v1/swap/execute", userToken,
		map[string]interface{}{"fromCrypto": "bitcoin", "toCrypto": "ethereum", "amount": "30"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = call(t, ts, http.MethodPost, "/api/v1/wallet/withdraw/request", userToken,
		map[string]interface{}{"cryptocurrency": "ethereum", "amount": "10", "toAddress": "0xabc"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var withdrawal struct {
		Transaction struct {
			ID uuid.UUID `json:"id"`
		} `json:"transaction"`
		NewBalance string `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &withdrawal))
	assert.Equal(t, "20", withdrawal.NewBalance)

	code, env = call(t, ts, http.MethodPut,
		"/api/v1/admin/transactions/withdrawals/"+withdrawal.Transaction.ID.String()+"/approve", adminToken,
		map[string]string{"adminNotes": "ok"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = call(t, ts, http.MethodGet, "/api/v1/wallet/balance", userToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	var summary struct {
		TotalValue string `json:"totalValue"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "90", summary.TotalValue)

	code, env = call(t, ts, http.MethodGet, "/api/v1/wallet/transactions?type=swap", userToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), "swap")
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunTLSFailsWithoutCertificate(t *testing.T) {
	cfg := &config.ServerConfig{
		Addr:        "127.0.0.1:0",
		Storage:     config.StorageMemory,
		JWTSecret:   testSecret,
		TLSCertFile: "missing.crt",
		TLSKeyFile:  "missing.key",
	}
	s := New(cfg, memory.NewStore(), events.NopPublisher{}, logger.NewNop())

	err := s.RunTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	require.Error(t, err)
	assert.NotErrorIs(t, err, http.ErrServerClosed)
}
