package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"momentum-backtest/internal/api/models"
)

func TestErrorHandler_RecoversPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(nil), ErrorHandler(nil))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var body models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "INTERNAL_ERROR" || body.Error.Message != "kaboom" {
		t.Fatalf("body=%+v", body)
	}
}

func TestCORSOptions(t *testing.T) {
	if got := CORSOptions("").AllowedOrigins; len(got) != 1 || got[0] != "*" {
		t.Fatalf("default origins=%v", got)
	}
	got := CORSOptions(" https://a.example , https://b.example,").AllowedOrigins
	if len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("origins=%v", got)
	}

	t.Setenv("CORS_ORIGINS", "")
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://c.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("allow-origin=%q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
