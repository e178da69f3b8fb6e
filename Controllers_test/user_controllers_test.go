package Controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/dimsprat/scanner-gateway/controllers"
	"github.com/dimsprat/scanner-gateway/utils"
)

func setupUserRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	userCtrl := controllers.NewUserController(db)
	router.POST("/register", userCtrl.Register)
	router.POST("/login", userCtrl.Login)

	return router
}

func TestRegisterAndLogin(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	router := setupUserRouter(db)

	// --- Test Register Operator ---
	registerPayload := map[string]string{
		"name":     "Petugas Pintu",
		"email":    "scanner@example.com",
		"password": "password123",
		"role":     "scanner",
	}
	payloadBytes, err := json.Marshal(registerPayload)
	assert.NoError(t, err)

	req, err := http.NewRequest("POST", "/register", bytes.NewBuffer(payloadBytes))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var registerResponse map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &registerResponse)
	assert.NoError(t, err)
	assert.Equal(t, true, registerResponse["status"])
	data := registerResponse["data"].(map[string]interface{})
	assert.NotNil(t, data["user_id"])

	// --- Test Login Operator ---
	loginPayload := map[string]string{
		"email":    "scanner@example.com",
		"password": "password123",
	}
	payloadBytes, err = json.Marshal(loginPayload)
	assert.NoError(t, err)

	req, err = http.NewRequest("POST", "/login", bytes.NewBuffer(payloadBytes))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var loginResponse map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &loginResponse)
	assert.NoError(t, err)
	assert.Equal(t, true, loginResponse["status"])
	data = loginResponse["data"].(map[string]interface{})
	token, ok := data["token"].(string)
	assert.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, "scanner", data["role"])
}

func TestRegisterInvalidRole(t *testing.T) {
	utils.InitLogger()

	router := setupUserRouter(setupTestDB(t))

	payload := map[string]string{
		"name":     "Siapa Saja",
		"email":    "nobody@example.com",
		"password": "password123",
		"role":     "kasir",
	}
	payloadBytes, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", "/register", bytes.NewBuffer(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	router := setupUserRouter(db)

	registerPayload := map[string]string{
		"name":     "Admin",
		"email":    "admin@example.com",
		"password": "password123",
		"role":     "admin",
	}
	payloadBytes, _ := json.Marshal(registerPayload)
	req, _ := http.NewRequest("POST", "/register", bytes.NewBuffer(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	loginPayload := map[string]string{
		"email":    "admin@example.com",
		"password": "salah-total",
	}
	payloadBytes, _ = json.Marshal(loginPayload)
	req, _ = http.NewRequest("POST", "/login", bytes.NewBuffer(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
