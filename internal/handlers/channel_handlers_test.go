package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"channel-chat/internal/models"

	"github.com/stretchr/testify/require"
)

func (s *testServer) doJSON(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestCreateChannelEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "alice")

	resp, body := ts.doJSON(t, http.MethodPost, "/channels", token, models.CreateChannelRequest{
		Name:    "alice and bob",
		Kind:    models.KindDirect,
		Members: []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var ch models.Channel
	require.NoError(t, json.Unmarshal(body, &ch))
	// The creator is added automatically.
	require.ElementsMatch(t, []string{"alice", "bob"}, ch.Members)
	require.NotEmpty(t, ch.ID)
}

func TestCreateChannelEndpoint_ValidationError(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "alice")

	// A direct channel with only the creator has 1 member.
	resp, _ := ts.doJSON(t, http.MethodPost, "/channels", token, models.CreateChannelRequest{
		Name:    "just me",
		Kind:    models.KindDirect,
		Members: []string{"alice"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateChannelEndpoint_Unauthorized(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.doJSON(t, http.MethodPost, "/channels", "", models.CreateChannelRequest{
		Name:    "anonymous",
		Kind:    models.KindGroup,
		Members: []string{"alice", "bob"},
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRemoveMemberEndpoint_ConstraintViolation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "alice")

	resp, body := ts.doJSON(t, http.MethodPost, "/channels", token, models.CreateChannelRequest{
		Name:    "alice and bob",
		Kind:    models.KindDirect,
		Members: []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ch models.Channel
	require.NoError(t, json.Unmarshal(body, &ch))

	resp, _ = ts.doJSON(t, http.MethodDelete,
		fmt.Sprintf("/channels/%s/members/bob", ch.ID), token, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Membership unchanged at 2.
	resp, body = ts.doJSON(t, http.MethodGet, "/channels/"+ch.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &ch))
	require.Len(t, ch.Members, 2)
}

func TestListChannelsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := ts.token(t, "alice")

	resp, _ := ts.doJSON(t, http.MethodPost, "/channels", aliceToken, models.CreateChannelRequest{
		Name:    "group one",
		Kind:    models.KindGroup,
		Members: []string{"alice", "bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.doJSON(t, http.MethodGet, "/channels", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var channels []models.Channel
	require.NoError(t, json.Unmarshal(body, &channels))
	require.Len(t, channels, 1)

	// An outsider sees nothing.
	resp, body = ts.doJSON(t, http.MethodGet, "/channels", ts.token(t, "mallory"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &channels))
	require.Empty(t, channels)
}

func TestAddMembersEndpoint_RequiresMembership(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := ts.token(t, "alice")

	resp, body := ts.doJSON(t, http.MethodPost, "/channels", aliceToken, models.CreateChannelRequest{
		Name:    "private group",
		Kind:    models.KindGroup,
		Members: []string{"alice", "bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ch models.Channel
	require.NoError(t, json.Unmarshal(body, &ch))

	resp, _ = ts.doJSON(t, http.MethodPost, "/channels/"+ch.ID+"/members",
		ts.token(t, "mallory"), models.MemberRequest{Members: []string{"mallory"}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.doJSON(t, http.MethodPost, "/channels/"+ch.ID+"/members",
		aliceToken, models.MemberRequest{Members: []string{"carol"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &ch))
	require.ElementsMatch(t, []string{"alice", "bob", "carol"}, ch.Members)
}
