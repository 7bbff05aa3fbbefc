package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/formsync/internal/proto"
)

func newAuthedRequest(method, url, token string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := newAuthedRequest(method, e.ts.URL+path, token, data)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// makeJWT signs arbitrary claims, bypassing auth.GenerateToken.
func makeJWT(secret, aud, iss, sub string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestAPIRequiresBearer(t *testing.T) {
	env := startTestServer(t)

	valid, err := makeJWT(testSecret, "test", "test", "carol", time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}
	wrongAudience, err := makeJWT(testSecret, "other", "test", "carol", time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	if status := env.do(t, http.MethodGet, "/api/formularios", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status := env.do(t, http.MethodGet, "/api/formularios", wrongAudience, nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong audience, got %d", status)
	}

	var me proto.Principal
	if status := env.do(t, http.MethodGet, "/api/me", valid, nil, &me); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if me.Nome != "carol" || me.Cor == "" || me.ID == "" {
		t.Fatalf("unexpected principal: %+v", me)
	}
}

func TestAPIFormLifecycle(t *testing.T) {
	env := startTestServer(t)
	token := env.token(t, "alice", "Alice")

	if status := env.do(t, http.MethodPost, "/api/formularios", token, map[string]string{}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without title, got %d", status)
	}

	var created proto.Form
	status := env.do(t, http.MethodPost, "/api/formularios", token, proto.NewForm{Titulo: "Survey"}, &created)
	if status != http.StatusCreated || created.ID == "" || created.Titulo != "Survey" {
		t.Fatalf("unexpected create: %d %+v", status, created)
	}

	title := "Survey 2026"
	text := "Name?"
	patch := proto.FormPatch{
		Titulo:    &title,
		Perguntas: []proto.QuestionPatch{{ID: "q1", Nova: true, Texto: &text}},
	}
	var patched proto.Form
	if status := env.do(t, http.MethodPatch, "/api/formularios/"+created.ID, token, patch, &patched); status != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d", status)
	}
	if patched.Titulo != title || len(patched.Perguntas) != 1 || patched.Perguntas[0].Texto != text {
		t.Fatalf("unexpected patched form: %+v", patched)
	}

	var fetched proto.Form
	if status := env.do(t, http.MethodGet, "/api/formularios/"+created.ID, token, nil, &fetched); status != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", status)
	}
	if fetched.Titulo != title {
		t.Fatalf("unexpected fetched form: %+v", fetched)
	}

	var list []proto.FormSummary
	if status := env.do(t, http.MethodGet, "/api/formularios", token, nil, &list); status != http.StatusOK {
		t.Fatalf("expected 200 on list, got %d", status)
	}
	if len(list) != 1 || list[0].TotalPerguntas != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if status := env.do(t, http.MethodGet, "/api/formularios/ghost", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown form, got %d", status)
	}
	if status := env.do(t, http.MethodDelete, "/api/formularios/"+created.ID, token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", status)
	}
	if status := env.do(t, http.MethodDelete, "/api/formularios/"+created.ID, token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", status)
	}
}

func TestAPIResponses(t *testing.T) {
	env := startTestServer(t)
	token := env.token(t, "alice", "Alice")
	form := env.createForm(t, "Survey")
	base := "/api/formularios/" + form.ID + "/respostas"

	var first, second proto.Response
	if status := env.do(t, http.MethodPost, base, token, proto.NewResponse{Respostas: map[string]string{"q1": "a"}}, &first); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if status := env.do(t, http.MethodPost, base, token, proto.NewResponse{Respostas: map[string]string{"q1": "b"}}, &second); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}

	var list []proto.Response
	if status := env.do(t, http.MethodGet, base, token, nil, &list); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if status := env.do(t, http.MethodDelete, base+"/"+first.ID, token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}
	if status := env.do(t, http.MethodDelete, base+"/"+first.ID, token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status := env.do(t, http.MethodGet, "/api/formularios/ghost/respostas", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown form, got %d", status)
	}
	if status := env.do(t, http.MethodPost, "/api/formularios/ghost/respostas", token, proto.NewResponse{}, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown form, got %d", status)
	}
}

func TestResponsesChannelFollowsSubmissions(t *testing.T) {
	env := startTestServer(t)
	token := env.token(t, "alice", "Alice")
	form := env.createForm(t, "Survey")

	m := newResponsesManager(t, env, form.ID, token)

	var created proto.Response
	path := "/api/formularios/" + form.ID + "/respostas"
	if status := env.do(t, http.MethodPost, path, token, proto.NewResponse{Respostas: map[string]string{"q1": "yes"}}, &created); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}

	waitFor(t, "response on channel", func() bool {
		state := m.Snapshot().State
		return state != nil && len(*state) == 1 && (*state)[0].ID == created.ID
	})

	if status := env.do(t, http.MethodDelete, path+"/"+created.ID, token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}
	waitFor(t, "response removed", func() bool { return len(*m.Snapshot().State) == 0 })
}
