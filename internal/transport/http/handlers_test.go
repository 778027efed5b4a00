package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flag-challenge-service/internal/app"
	"flag-challenge-service/internal/domain"
	"flag-challenge-service/internal/infra/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

func newTestRouter(t *testing.T) (http.Handler, *app.CompletionFeed) {
	t.Helper()

	store := memory.NewStore()
	store.SeedCountries([]domain.Country{
		{Code: "FRA", Name: "France", FlagEmoji: "🇫🇷", DifficultyTier: "easy", AlternateNames: []string{"fra"}},
		{Code: "KIR", Name: "Kiribati", FlagEmoji: "🇰🇮", DifficultyTier: "hard"},
	})

	feed := app.NewCompletionFeed()
	selector := app.NewSelector(store, store, time.UTC)
	service := app.NewChallengeService(store, store, store, store, selector, app.ChallengeServiceConfig{
		Timezone: time.UTC,
		Tier:     domain.DefaultTier(),
		Feed:     feed,
	})

	handler := NewHandler(service, store, zap.NewNop())
	return handler.Router(testSecret, NewFeedHandler(feed, zap.NewNop())), feed
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID}).
		SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, server *httptest.Server, method, path, token string, body []byte) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var payload map[string]interface{}
	_ = json.Unmarshal(raw, &payload)
	return resp, payload
}

func TestDailyRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodGet, "/api/v1/daily", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, server, http.MethodGet, "/api/v1/daily", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", resp.StatusCode)
	}
}

func TestDailyAnswerFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()
	token := bearerToken(t, "user-a")

	resp, daily := doRequest(t, server, http.MethodGet, "/api/v1/daily", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get daily: expected 200, got %d", resp.StatusCode)
	}
	question, ok := daily["question"].(map[string]interface{})
	if !ok {
		t.Fatalf("daily response missing question: %v", daily)
	}
	if text, _ := question["questionText"].(string); text == "" {
		t.Fatalf("daily question has no text: %v", question)
	}

	body := []byte(`{"answerData":{"text":"atlantis"}}`)
	for n := 1; n <= 3; n++ {
		resp, result := doRequest(t, server, http.MethodPost, "/api/v1/daily/answer", token, body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", n, resp.StatusCode)
		}
		if result["isCorrect"] != false {
			t.Fatalf("attempt %d: atlantis should be wrong: %v", n, result)
		}
		if n < 3 && result["correctAnswer"] != nil {
			t.Fatalf("attempt %d must not reveal the answer: %v", n, result)
		}
		if n == 3 {
			if result["hasCompleted"] != true {
				t.Fatalf("third attempt should complete: %v", result)
			}
			reveal, ok := result["correctAnswer"].(map[string]interface{})
			if !ok || reveal["answer"] == "" {
				t.Fatalf("completion should reveal the answer: %v", result)
			}
		}
	}

	resp, errBody := doRequest(t, server, http.MethodPost, "/api/v1/daily/answer", token, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("exhausted: expected 400, got %d (%v)", resp.StatusCode, errBody)
	}

	resp, stats := doRequest(t, server, http.MethodGet, "/api/v1/stats", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	if stats["currentStreak"] != float64(0) {
		t.Fatalf("failed day should leave streak at 0: %v", stats)
	}
	if missed, ok := stats["missedCountryCodes"].([]interface{}); !ok || len(missed) != 1 {
		t.Fatalf("expected one missed country: %v", stats)
	}
}

func TestCountryCatalogEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, list := doRequest(t, server, http.MethodGet, "/api/v1/countries", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	if results, ok := list["results"].([]interface{}); !ok || len(results) != 2 {
		t.Fatalf("expected 2 countries, got %v", list)
	}

	resp, filtered := doRequest(t, server, http.MethodGet, "/api/v1/countries?tier=hard", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tier filter: expected 200, got %d", resp.StatusCode)
	}
	if results, ok := filtered["results"].([]interface{}); !ok || len(results) != 1 {
		t.Fatalf("expected 1 hard country, got %v", filtered)
	}

	resp, country := doRequest(t, server, http.MethodGet, "/api/v1/countries/FRA", "", nil)
	if resp.StatusCode != http.StatusOK || country["name"] != "France" {
		t.Fatalf("get country: %d %v", resp.StatusCode, country)
	}

	resp, _ = doRequest(t, server, http.MethodGet, "/api/v1/countries/XXX", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown code: expected 404, got %d", resp.StatusCode)
	}
}

func TestHistoryRejectsBadCursor(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodGet, "/api/v1/daily/history?before=notadate", bearerToken(t, "user-a"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebSocketTallyFeed(t *testing.T) {
	router, feed := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/daily"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg outboundMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "tally" || msg.Payload.Completed != 0 {
		t.Fatalf("unexpected snapshot %+v", msg)
	}

	feed.Publish(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if msg.Payload.Completed != 1 || msg.Payload.Solved != 1 {
		t.Fatalf("unexpected tally %+v", msg.Payload)
	}
}
