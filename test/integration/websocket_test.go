// Package integration exercises the relay end to end over real WebSocket
// connections: registration, presence, rooms, and routing.
package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pulsechat/relay/internal/server"
	"github.com/pulsechat/relay/test/testhelpers"
)

type identityPayload struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
}

type receivedPayload struct {
	From    identityPayload `json:"from"`
	Message json.RawMessage `json:"message"`
	ChatID  string          `json:"chatId"`
}

func decodeUsers(t *testing.T, env server.Envelope) []identityPayload {
	t.Helper()
	var users []identityPayload
	require.NoError(t, json.Unmarshal(env.Data, &users))
	return users
}

func TestPresenceFollowsJoinAndDisconnect(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	a := testhelpers.Dial(t, ts)
	testhelpers.SendEvent(t, a, server.EventUserJoin, identityPayload{UID: "1", DisplayName: "Ann"})

	users := decodeUsers(t, testhelpers.WaitForEvent(t, a, server.EventUsersActive))
	req.Len(users, 1)
	req.Equal("1", users[0].UID)

	b := testhelpers.Dial(t, ts)
	testhelpers.SendEvent(t, b, server.EventUserJoin, identityPayload{UID: "2", DisplayName: "Ben"})

	// Both connections observe the two-user list, in join order.
	users = decodeUsers(t, testhelpers.WaitForEvent(t, a, server.EventUsersActive))
	for len(users) < 2 {
		users = decodeUsers(t, testhelpers.WaitForEvent(t, a, server.EventUsersActive))
	}
	req.Equal("1", users[0].UID)
	req.Equal("2", users[1].UID)

	require.NoError(t, b.Close())

	users = decodeUsers(t, testhelpers.WaitForEvent(t, a, server.EventUsersActive))
	for len(users) != 1 {
		users = decodeUsers(t, testhelpers.WaitForEvent(t, a, server.EventUsersActive))
	}
	req.Equal("1", users[0].UID)
}

func TestGroupMessageEndToEnd(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	a := testhelpers.Dial(t, ts)
	b := testhelpers.Dial(t, ts)
	testhelpers.SendEvent(t, a, server.EventUserJoin, identityPayload{UID: "1", DisplayName: "Ann"})
	testhelpers.SendEvent(t, b, server.EventUserJoin, identityPayload{UID: "2", DisplayName: "Ben"})

	testhelpers.SendEvent(t, a, server.EventChatJoin, "r1")
	// group:join produces a member_joined frame on A, which doubles as the
	// barrier proving B's membership is in place before A sends.
	testhelpers.SendEvent(t, b, server.EventGroupJoin, map[string]string{"chatId": "r1"})
	testhelpers.WaitForEvent(t, a, server.EventGroupMemberJoined)

	testhelpers.SendEvent(t, a, server.EventMessageGroup, map[string]any{"chatId": "r1", "message": "hi"})

	env := testhelpers.WaitForEvent(t, b, server.EventMessageReceive)
	var got receivedPayload
	req.NoError(json.Unmarshal(env.Data, &got))
	req.Equal("1", got.From.UID)
	req.Equal("r1", got.ChatID)
	req.JSONEq(`"hi"`, string(got.Message))

	// The sender hears nothing back.
	testhelpers.AssertSilence(t, a, 200*time.Millisecond)
}

func TestPrivateMessageEndToEnd(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	a := testhelpers.Dial(t, ts)
	b := testhelpers.Dial(t, ts)
	testhelpers.SendEvent(t, a, server.EventUserJoin, identityPayload{UID: "1", DisplayName: "Ann"})
	testhelpers.SendEvent(t, b, server.EventUserJoin, identityPayload{UID: "2", DisplayName: "Ben"})
	testhelpers.WaitForEvent(t, b, server.EventUsersActive)

	testhelpers.SendEvent(t, a, server.EventMessagePrivate, map[string]any{"to": "2", "message": "psst"})

	env := testhelpers.WaitForEvent(t, b, server.EventMessageReceive)
	var got receivedPayload
	req.NoError(json.Unmarshal(env.Data, &got))
	req.Equal("1", got.From.UID)
	req.Equal("Ann", got.From.DisplayName)
	req.JSONEq(`"psst"`, string(got.Message))
	req.Empty(got.ChatID)
}

func TestTypingIndicatorFansOut(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	a := testhelpers.Dial(t, ts)
	b := testhelpers.Dial(t, ts)
	testhelpers.SendEvent(t, a, server.EventUserJoin, identityPayload{UID: "1", DisplayName: "Ann"})
	testhelpers.SendEvent(t, b, server.EventUserJoin, identityPayload{UID: "2", DisplayName: "Ben"})

	testhelpers.SendEvent(t, b, server.EventChatJoin, "r1")
	testhelpers.SendEvent(t, a, server.EventGroupJoin, map[string]string{"chatId": "r1"})
	testhelpers.WaitForEvent(t, b, server.EventGroupMemberJoined)

	user := map[string]string{"uid": "1", "displayName": "Ann"}
	testhelpers.SendEvent(t, a, server.EventTypingStart, map[string]any{"chatId": "r1", "user": user})
	testhelpers.SendEvent(t, a, server.EventTypingStop, map[string]any{"chatId": "r1", "user": user})

	var updates []bool
	for len(updates) < 2 {
		env := testhelpers.WaitForEvent(t, b, server.EventTypingUpdate)
		var update struct {
			IsTyping bool `json:"isTyping"`
		}
		req.NoError(json.Unmarshal(env.Data, &update))
		updates = append(updates, update.IsTyping)
	}
	req.Equal([]bool{true, false}, updates)
}

func TestPrivateMessageToOfflineUserIsSilentlyDropped(t *testing.T) {
	ts := testhelpers.StartRelay(t)

	a := testhelpers.Dial(t, ts)
	testhelpers.SendEvent(t, a, server.EventUserJoin, identityPayload{UID: "1", DisplayName: "Ann"})
	testhelpers.WaitForEvent(t, a, server.EventUsersActive)

	testhelpers.SendEvent(t, a, server.EventMessagePrivate, map[string]any{"to": "404", "message": "hello?"})

	// No error frame, no echo; the connection stays healthy.
	testhelpers.AssertSilence(t, a, 200*time.Millisecond)
}

func TestMalformedFrameKeepsConnectionAlive(t *testing.T) {
	req := require.New(t)
	ts := testhelpers.StartRelay(t)

	a := testhelpers.Dial(t, ts)
	req.NoError(a.WriteMessage(websocket.TextMessage, []byte("this is not an envelope")))

	// The relay logs and drops the frame; the connection still works.
	testhelpers.SendEvent(t, a, server.EventUserJoin, identityPayload{UID: "1", DisplayName: "Ann"})
	users := decodeUsers(t, testhelpers.WaitForEvent(t, a, server.EventUsersActive))
	req.Len(users, 1)
}
