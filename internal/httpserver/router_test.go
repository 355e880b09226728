package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/auth"
	"github.com/vahri/branchguard/internal/config"
	"github.com/vahri/branchguard/internal/db/dbtest"
	"github.com/vahri/branchguard/internal/httpserver"
	"github.com/vahri/branchguard/internal/models"
)

const testSecret = "test-secret"

func newServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := dbtest.OpenSeeded(t)
	engine := httpserver.New(gdb, config.Config{JWTSecret: testSecret}, zap.NewNop())
	return engine, gdb
}

func signToken(t *testing.T, userID int64) string {
	t.Helper()

	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func createOrder(t *testing.T, gdb *gorm.DB, branchID, ownerID int64, ref string) models.Order {
	t.Helper()

	order := models.Order{BranchID: branchID, OwnerUserID: ownerID, Reference: ref, Total: 100}
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).Create(&order).Error)
	return order
}

func TestLoginIssuesTokenForMe(t *testing.T) {
	engine, _ := newServer(t)

	w := doRequest(t, engine, "POST", "/api/v1/auth/login", "", gin.H{
		"email": "admin@example.com", "password": "admin123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.Token)

	w = doRequest(t, engine, "GET", "/api/v1/me", login.Data.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	engine, _ := newServer(t)

	w := doRequest(t, engine, "POST", "/api/v1/auth/login", "", gin.H{
		"email": "admin@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, w).Error.Code)
}

func TestMissingTokenIsUnauthenticated(t *testing.T) {
	engine, _ := newServer(t)

	w := doRequest(t, engine, "GET", "/api/v1/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)
}

func TestDisabledUserIsRejectedWithValidToken(t *testing.T) {
	engine, gdb := newServer(t)
	branch := dbtest.Branch(t, gdb, "west")
	user := dbtest.User(t, gdb, "emp@example.com", "employee", &branch.ID)
	token := signToken(t, user.ID)

	require.NoError(t, gdb.Model(&models.User{}).
		Where("id = ?", user.ID).Update("status", models.UserDisabled).Error)

	w := doRequest(t, engine, "GET", "/api/v1/orders", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)
}

func TestEmployeeDeleteDeniedBeforeRowIsTouched(t *testing.T) {
	engine, gdb := newServer(t)
	branch := dbtest.Branch(t, gdb, "west")
	emp := dbtest.User(t, gdb, "emp@example.com", "employee", &branch.ID)
	order := createOrder(t, gdb, branch.ID, emp.ID, "ORD-1")

	w := doRequest(t, engine, "DELETE", fmt.Sprintf("/api/v1/orders/%d", order.ID), signToken(t, emp.ID), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)

	var count int64
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).
		Model(&models.Order{}).Where("id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestManagerUpdatesOwnBranchOrder(t *testing.T) {
	engine, gdb := newServer(t)
	branch := dbtest.Branch(t, gdb, "west")
	mgr := dbtest.User(t, gdb, "mgr@example.com", "manager", &branch.ID)
	emp := dbtest.User(t, gdb, "emp@example.com", "employee", &branch.ID)
	order := createOrder(t, gdb, branch.ID, emp.ID, "ORD-1")

	w := doRequest(t, engine, "PUT", fmt.Sprintf("/api/v1/orders/%d", order.ID), signToken(t, mgr.ID),
		gin.H{"total": 250})
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Order
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).First(&reloaded, order.ID).Error)
	assert.EqualValues(t, 250, reloaded.Total)
}

func TestManagerCannotUpdateForeignBranchOrder(t *testing.T) {
	engine, gdb := newServer(t)
	west := dbtest.Branch(t, gdb, "west")
	east := dbtest.Branch(t, gdb, "east")
	mgr := dbtest.User(t, gdb, "mgr@example.com", "manager", &west.ID)
	other := dbtest.User(t, gdb, "other@example.com", "employee", &east.ID)
	order := createOrder(t, gdb, east.ID, other.ID, "ORD-EAST")

	w := doRequest(t, engine, "PUT", fmt.Sprintf("/api/v1/orders/%d", order.ID), signToken(t, mgr.ID),
		gin.H{"total": 999})
	// Same generic denial as a missing row: existence of cross-branch
	// data is not confirmed.
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)

	var reloaded models.Order
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).First(&reloaded, order.ID).Error)
	assert.EqualValues(t, 100, reloaded.Total)
}

func TestEmployeeListSeesOnlyOwnOrders(t *testing.T) {
	engine, gdb := newServer(t)
	branch := dbtest.Branch(t, gdb, "west")
	emp := dbtest.User(t, gdb, "emp@example.com", "employee", &branch.ID)
	mgr := dbtest.User(t, gdb, "mgr@example.com", "manager", &branch.ID)
	createOrder(t, gdb, branch.ID, emp.ID, "MINE")
	createOrder(t, gdb, branch.ID, mgr.ID, "THEIRS")

	w := doRequest(t, engine, "GET", "/api/v1/orders", signToken(t, emp.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []models.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "MINE", orders[0].Reference)

	// The manager's branch scope sees both rows.
	w = doRequest(t, engine, "GET", "/api/v1/orders", signToken(t, mgr.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &orders))
	assert.Len(t, orders, 2)
}

func TestEmployeeCannotReadColleagueOrderByID(t *testing.T) {
	engine, gdb := newServer(t)
	branch := dbtest.Branch(t, gdb, "west")
	emp := dbtest.User(t, gdb, "emp@example.com", "employee", &branch.ID)
	mgr := dbtest.User(t, gdb, "mgr@example.com", "manager", &branch.ID)
	order := createOrder(t, gdb, branch.ID, mgr.ID, "THEIRS")

	w := doRequest(t, engine, "GET", fmt.Sprintf("/api/v1/orders/%d", order.ID), signToken(t, emp.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)
}

func TestCreateOrderLandsInCallerBranch(t *testing.T) {
	engine, gdb := newServer(t)
	branch := dbtest.Branch(t, gdb, "west")
	emp := dbtest.User(t, gdb, "emp@example.com", "employee", &branch.ID)

	w := doRequest(t, engine, "POST", "/api/v1/orders", signToken(t, emp.ID),
		gin.H{"reference": "NEW-1", "total": 42})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).
		Where("reference = ?", "NEW-1").First(&order).Error)
	assert.Equal(t, branch.ID, order.BranchID)
	assert.Equal(t, emp.ID, order.OwnerUserID)
}

func TestAdminManagesGrantsAcrossBranches(t *testing.T) {
	engine, gdb := newServer(t)

	var admin models.User
	require.NoError(t, gdb.Where("email = ?", "admin@example.com").First(&admin).Error)
	token := signToken(t, admin.ID)

	w := doRequest(t, engine, "GET", "/api/v1/grants", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, engine, "PUT", "/api/v1/grants", token, gin.H{
		"role_key":     "employee",
		"resource_key": "audit",
		"action_key":   "view",
		"effect":       "allow",
		"scope":        "own",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Employees may not touch the grant matrix.
	branch := dbtest.Branch(t, gdb, "west")
	emp := dbtest.User(t, gdb, "emp@example.com", "employee", &branch.ID)
	w = doRequest(t, engine, "PUT", "/api/v1/grants", signToken(t, emp.ID), gin.H{
		"role_key":     "employee",
		"resource_key": "orders",
		"action_key":   "delete",
		"effect":       "allow",
		"scope":        "all",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestScopeNoneOverrideListsNothing(t *testing.T) {
	engine, gdb := newServer(t)
	west := dbtest.Branch(t, gdb, "west")
	east := dbtest.Branch(t, gdb, "east")
	emp := dbtest.User(t, gdb, "emp@example.com", "employee", &west.ID)
	dbtest.User(t, gdb, "far@example.com", "employee", &east.ID)

	// An allow override with scope none passes the route guard but
	// grants access to no rows at all.
	for _, res := range []string{"users", "orders"} {
		ov := models.UserOverride{
			UserID:     emp.ID,
			ResourceID: dbtest.ResourceID(t, gdb, res),
			ActionID:   dbtest.ActionID(t, gdb, models.ActionView),
			Effect:     models.EffectAllow,
			Scope:      models.ScopeNone,
		}
		require.NoError(t, gdb.Create(&ov).Error)
	}
	createOrder(t, gdb, west.ID, emp.ID, "MINE")

	w := doRequest(t, engine, "GET", "/api/v1/users", signToken(t, emp.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []models.User
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &users))
	assert.Empty(t, users)

	w = doRequest(t, engine, "GET", "/api/v1/orders", signToken(t, emp.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []models.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &orders))
	assert.Empty(t, orders)
}

func TestUserResponsesNeverCarryPasswordHashes(t *testing.T) {
	engine, gdb := newServer(t)

	var admin models.User
	require.NoError(t, gdb.Where("email = ?", "admin@example.com").First(&admin).Error)

	w := doRequest(t, engine, "GET", "/api/v1/users", signToken(t, admin.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	// Seeded accounts carry bcrypt hashes; none may survive serialization.
	assert.NotContains(t, w.Body.String(), "$2a$")
	assert.NotContains(t, w.Body.String(), "password_hash")

	w = doRequest(t, engine, "GET", "/api/v1/me", signToken(t, admin.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestBadOrderIDIsRejected(t *testing.T) {
	engine, gdb := newServer(t)
	branch := dbtest.Branch(t, gdb, "west")
	mgr := dbtest.User(t, gdb, "mgr@example.com", "manager", &branch.ID)

	w := doRequest(t, engine, "GET", "/api/v1/orders/abc", signToken(t, mgr.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, w).Error.Code)
}
