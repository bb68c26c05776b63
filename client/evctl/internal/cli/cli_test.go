package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evregistry/backend/libs/identity"
	"evregistry/client/evctl/internal/session"
)

func signToken(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
		Name:  "Ann",
		Email: "ann@x.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

// setup points evctl at h and returns the token file path.
func setup(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("EVCTL_SERVER", srv.URL)
	t.Setenv("EVCTL_TOKEN_FILE", tokenFile)
	return tokenFile
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = orig })
}

func TestLoginThenWhoami(t *testing.T) {
	tok := signToken(t, "admin")
	setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "secret1", body["password"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": tok,
			"user":  map[string]string{"_id": "u-1", "name": "Ann", "email": "ann@x.com", "role": "admin"},
		})
	}))
	stubPassword(t, "secret1")

	out, err := run(t, "login", "--email", "ann@x.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ann <ann@x.com> (admin)")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "u-1 Ann <ann@x.com> role=admin")
}

func TestWhoamiWithoutSession(t *testing.T) {
	setup(t, http.NotFoundHandler())
	out, err := run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in\n", out)
}

func TestLogoutRemovesToken(t *testing.T) {
	tokenFile := setup(t, http.NotFoundHandler())
	store := session.NewFileStore(tokenFile)
	require.NoError(t, store.Save(signToken(t, "user")))

	_, err := run(t, "logout")
	require.NoError(t, err)
	tok, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestMutationsGatedForNonAdmin(t *testing.T) {
	tokenFile := setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	require.NoError(t, session.NewFileStore(tokenFile).Save(signToken(t, "user")))

	_, err := run(t, "stations", "delete", "s1")
	assert.ErrorIs(t, err, errAdminOnly)
	_, err = run(t, "stations", "create", "--name", "A", "--lat", "1", "--lng", "2")
	assert.ErrorIs(t, err, errAdminOnly)
}

func TestForceSendsNonAdminMutation(t *testing.T) {
	var hit bool
	tokenFile := setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.Method == http.MethodDelete
		_, _ = w.Write([]byte(`{"message":"Charging station deleted"}`))
	}))
	require.NoError(t, session.NewFileStore(tokenFile).Save(signToken(t, "user")))

	out, err := run(t, "stations", "delete", "s1", "--force")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, out, "Deleted s1")
}

func TestListPrintsTable(t *testing.T) {
	tokenFile := setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CCS", r.URL.Query().Get("connectorType"))
		_, _ = w.Write([]byte(`[{"_id":"s1","name":"Hub","location":{"latitude":12.9,"longitude":77.5},` +
			`"powerOutput":50,"slots":4,"connectorType":"CCS","status":"Active"}]`))
	}))
	require.NoError(t, session.NewFileStore(tokenFile).Save(signToken(t, "user")))

	out, err := run(t, "stations", "list", "--connector", "CCS")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"s1", "Hub", "12.9", "77.5", "50", "4", "CCS", "Active"}, strings.Fields(lines[1]))
}

func TestUpdateKeepsCurrentLocation(t *testing.T) {
	current := `{"_id":"s1","name":"Hub","location":{"latitude":12.9,"longitude":77.5}}`
	var sent map[string]any
	tokenFile := setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(current))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			_, _ = w.Write([]byte(`{"_id":"s1","name":"Hub","status":"Inactive","location":{"latitude":12.9,"longitude":77.5}}`))
		}
	}))
	require.NoError(t, session.NewFileStore(tokenFile).Save(signToken(t, "admin")))

	_, err := run(t, "stations", "update", "s1", "--status", "Inactive", "--json")
	require.NoError(t, err)
	assert.Equal(t, "Inactive", sent["status"])
	assert.Equal(t, map[string]any{"latitude": 12.9, "longitude": 77.5}, sent["location"])
	assert.NotContains(t, sent, "name")
}

func TestLatLngTogether(t *testing.T) {
	tokenFile := setup(t, http.NotFoundHandler())
	require.NoError(t, session.NewFileStore(tokenFile).Save(signToken(t, "admin")))

	_, err := run(t, "stations", "create", "--name", "A", "--lat", "1")
	assert.ErrorContains(t, err, "--lat and --lng")
}
