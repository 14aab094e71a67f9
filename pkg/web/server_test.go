package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samparadis/dvrk-ros/pkg/core"
	"github.com/samparadis/dvrk-ros/pkg/msgs"
	"github.com/samparadis/dvrk-ros/pkg/web"
)

type fakeSource struct {
	states map[string]msgs.StateJoint
}

func (f *fakeSource) Arms() []string {
	names := make([]string, 0, len(f.states))
	for name := range f.states {
		names = append(names, name)
	}
	return names
}

func (f *fakeSource) StateJointDesired(name string) (msgs.StateJoint, bool) {
	s, ok := f.states[name]
	return s, ok
}

func startServer(t *testing.T) (*web.Server, *fakeSource) {
	t.Helper()
	source := &fakeSource{states: map[string]msgs.StateJoint{
		"PSM1": {
			Name:     []string{"outer_yaw", "outer_pitch"},
			Position: []float64{0.1, -0.2},
			Valid:    true,
		},
	}}

	hash, err := web.HashPassword("surgeon")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	s, err := web.NewServer(web.Config{
		Addr:         "127.0.0.1:0",
		Username:     "operator",
		PasswordHash: hash,
		JWTSecret:    "test-secret-key",
	}, source, core.NewDefaultLogger())
	if err != nil {
		t.Fatalf("server construction failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, source
}

func login(t *testing.T, s *web.Server, username, password string) (string, int) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post("http://"+s.Addr()+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&out) //nolint:errcheck
	return out.Token, resp.StatusCode
}

func TestServer_Health(t *testing.T) {
	s, _ := startServer(t)
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_LoginAndReadState(t *testing.T) {
	s, _ := startServer(t)

	token, status := login(t, s, "operator", "surgeon")
	if status != http.StatusOK || token == "" {
		t.Fatalf("login failed: status %d, token %q", status, token)
	}

	req, _ := http.NewRequest("GET", "http://"+s.Addr()+"/state/PSM1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("state request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var state msgs.StateJoint
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if !state.Valid || len(state.Position) != 2 || state.Position[0] != 0.1 {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestServer_RejectsBadCredentials(t *testing.T) {
	s, _ := startServer(t)
	if _, status := login(t, s, "operator", "wrong"); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}
	if _, status := login(t, s, "intruder", "surgeon"); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad username, got %d", status)
	}
}

func TestServer_RejectsMissingAndBogusTokens(t *testing.T) {
	s, _ := startServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/state/PSM1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", "http://"+s.Addr()+"/state/PSM1", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bogus token, got %d", resp.StatusCode)
	}
}

func TestServer_UnknownArm(t *testing.T) {
	s, _ := startServer(t)
	token, _ := login(t, s, "operator", "surgeon")

	req, _ := http.NewRequest("GET", "http://"+s.Addr()+"/state/PSM9", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown arm, got %d", resp.StatusCode)
	}
}

func TestServer_WebSocketStream(t *testing.T) {
	s, _ := startServer(t)
	token, _ := login(t, s, "operator", "surgeon")

	url := "ws://" + s.Addr() + "/ws?arm=PSM1&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var state msgs.StateJoint
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("read stream failed: %v", err)
	}
	if !state.Valid || len(state.Name) != 2 {
		t.Errorf("unexpected streamed state: %+v", state)
	}
}

func TestServer_WebSocketRejectsBadToken(t *testing.T) {
	s, _ := startServer(t)
	url := "ws://" + s.Addr() + "/ws?arm=PSM1&token=bogus"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("expected websocket dial to fail without a valid token")
	}
}
