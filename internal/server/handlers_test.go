package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hivedesk/hivedesk/internal/config"
	"github.com/hivedesk/hivedesk/internal/engine"
	"github.com/hivedesk/hivedesk/internal/transport/rest"
)

func newTestServer(t *testing.T) (*httptest.Server, *Store) {
	t.Helper()
	store := openTestStore(t)
	seedTestUsers(t, store)

	srv, err := New(config.ServerConfig{
		Listen:    "127.0.0.1:0",
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}, store)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func login(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func restClient(t *testing.T, ts *httptest.Server, token string) *rest.Client {
	t.Helper()
	client, err := rest.NewClient(rest.Config{BaseURL: ts.URL, Token: token})
	require.NoError(t, err)
	return client
}

func TestServer_LoginRejectsBadCredentials(t *testing.T) {
	ts, _ := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Username: "akowalska", Password: "wrong"})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_RequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/communication/messages/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// The rest client and the development backend speak the same dialect:
// this drives the full identity/contacts/messages/mark-read surface
// through engine.Transport against a live router.
func TestServer_EndToEndWithRestClient(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()

	parentToken := login(t, ts, "akowalska", "parent")
	directorToken := login(t, ts, "mdyrektor", "director")
	parent := restClient(t, ts, parentToken)
	director := restClient(t, ts, directorToken)

	// Identity resolution.
	parentID, err := parent.FetchIdentity(ctx)
	require.NoError(t, err)
	require.False(t, parentID.Operator)
	directorID, err := director.FetchIdentity(ctx)
	require.NoError(t, err)
	require.True(t, directorID.Operator)

	// Parents fetch the operator roster, directors the parent roster.
	operators, err := parent.FetchContacts(ctx, engine.RoleOperator)
	require.NoError(t, err)
	require.Len(t, operators, 2)
	parents, err := director.FetchContacts(ctx, engine.RoleParent)
	require.NoError(t, err)
	require.Len(t, parents, 2)

	// Parent writes to the director.
	require.NoError(t, parent.Send(ctx, directorID.ID, "Pickup", "Running late today"))

	msgs, err := director.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, parentID.ID, msgs[0].SenderID)
	require.Equal(t, "Anna Kowalska", msgs[0].SenderName)
	require.False(t, msgs[0].Read)

	// Scoped mark-read flips it, and only it.
	require.NoError(t, director.MarkRead(ctx, parentID.ID))
	msgs, err = director.FetchMessages(ctx)
	require.NoError(t, err)
	require.True(t, msgs[0].Read)

	// The sender sees their own message too.
	own, err := parent.FetchMessages(ctx)
	require.NoError(t, err)
	require.Len(t, own, 1)
}

func TestServer_SendValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()
	token := login(t, ts, "akowalska", "parent")
	client := restClient(t, ts, token)

	id, err := client.FetchIdentity(ctx)
	require.NoError(t, err)

	require.Error(t, client.Send(ctx, id.ID, "s", "self message"), "sending to yourself is rejected")
	require.Error(t, client.Send(ctx, 9999, "s", "ghost"), "unknown receiver is rejected")
	require.Error(t, client.Send(ctx, 2, "s", "   "), "blank body is rejected")
}
