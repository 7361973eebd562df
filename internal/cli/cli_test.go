package cli

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/factory"
	"github.com/mcoot/tablebank/internal/model"
)

func TestProfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.toml")

	empty, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Nil(t, empty.Seat)
	assert.Empty(t, empty.Server)

	want := &Profile{
		Server: "http://bank.example:8080",
		Seat:   &Seat{Code: "ABCDE", PlayerID: "p-1", Token: "secret"},
	}
	require.NoError(t, SaveProfile(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be renamed away")
}

func TestLoadProfileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte("seat = [not toml"), 0o600))

	_, err := LoadProfile(path)
	assert.ErrorContains(t, err, "decode profile")
}

func TestResolveServer(t *testing.T) {
	c := &Config{}
	assert.Equal(t, defaultServerURL, c.resolveServer(nil))
	assert.Equal(t, "http://saved", c.resolveServer(&Profile{Server: "http://saved"}))

	c.ServerURL = "http://flag"
	assert.Equal(t, "http://flag", c.resolveServer(&Profile{Server: "http://saved"}))
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://bank.example/", "wss://bank.example/ws"},
		{"http://bank.example/prefix", "ws://bank.example/prefix/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := NewClient(tt.base).WebSocketURL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand(t *testing.T) {
	seated := &PlayState{
		Code:     "ABCDE",
		PlayerID: "p-alice",
		Lobby: &dispatch.LobbyView{
			Code: "ABCDE",
			Players: []dispatch.PlayerView{
				{ID: "p-alice", Name: "Alice", IsHost: true},
				{ID: "p-bob", Name: "Bob"},
			},
			Settings: dispatch.SettingsView{
				StartingBalance: 1500,
				TurnOrder:       []model.PlayerID{"p-alice", "p-bob"},
				QuickAmounts:    [model.QuickAmountCount]int64{10, 50, 100},
			},
		},
	}

	tests := []struct {
		name    string
		line    string
		state   *PlayState
		intent  dispatch.IntentType
		payload any
		decoded any
		errIs   error
	}{
		{
			name:    "create joins words into a name",
			line:    "create Alice Smith",
			intent:  dispatch.IntentCreateLobby,
			payload: &dispatch.CreateLobbyPayload{Name: "Alice Smith"},
			decoded: &dispatch.CreateLobbyPayload{},
		},
		{
			name:    "join",
			line:    "join abcde Bob",
			intent:  dispatch.IntentJoinLobby,
			payload: &dispatch.JoinLobbyPayload{Code: "abcde", Name: "Bob"},
			decoded: &dispatch.JoinLobbyPayload{},
		},
		{
			name:    "resume",
			line:    "resume ABCDE p-1 tok",
			intent:  dispatch.IntentResume,
			payload: &dispatch.ResumePayload{Code: "ABCDE", PlayerID: "p-1", Token: "tok"},
			decoded: &dispatch.ResumePayload{},
		},
		{
			name:  "seated command without a seat",
			line:  "start",
			errIs: errNotSeated,
		},
		{
			name:    "pay resolves names and pays from self",
			line:    "pay bob 200",
			state:   seated,
			intent:  dispatch.IntentTransferMoney,
			payload: &dispatch.TransferMoneyPayload{Code: "ABCDE", From: "p-alice", To: "p-bob", Amount: 200},
			decoded: &dispatch.TransferMoneyPayload{},
		},
		{
			name:    "transfer between others",
			line:    "transfer Bob Alice 75",
			state:   seated,
			intent:  dispatch.IntentTransferMoney,
			payload: &dispatch.TransferMoneyPayload{Code: "ABCDE", From: "p-bob", To: "p-alice", Amount: 75},
			decoded: &dispatch.TransferMoneyPayload{},
		},
		{
			name:    "bank subtract",
			line:    "bank Bob SUBTRACT 50",
			state:   seated,
			intent:  dispatch.IntentBankAction,
			payload: &dispatch.BankActionPayload{Code: "ABCDE", PlayerID: "p-bob", Amount: 50, Direction: model.DirectionSubtract},
			decoded: &dispatch.BankActionPayload{},
		},
		{
			name:  "non-numeric amount",
			line:  "pay bob lots",
			state: seated,
			errIs: errInvalidNumber,
		},
		{
			name:    "order",
			line:    "order bob alice",
			state:   seated,
			intent:  dispatch.IntentSetPlayerOrder,
			payload: &dispatch.SetPlayerOrderPayload{Code: "ABCDE", Order: []model.PlayerID{"p-bob", "p-alice"}},
			decoded: &dispatch.SetPlayerOrderPayload{},
		},
		{
			name:    "kick unknown reference passes through",
			line:    "kick p-zed",
			state:   seated,
			intent:  dispatch.IntentKickPlayer,
			payload: &dispatch.KickPlayerPayload{Code: "ABCDE", TargetID: "p-zed"},
			decoded: &dispatch.KickPlayerPayload{},
		},
		{
			name:   "settings overrides only what is given",
			line:   "settings balance=2000 first=bob quick=5,25,125",
			state:  seated,
			intent: dispatch.IntentUpdateSettings,
			payload: &dispatch.UpdateSettingsPayload{Code: "ABCDE", Settings: dispatch.SettingsView{
				StartingBalance: 2000,
				FirstPlayerID:   "p-bob",
				TurnOrder:       []model.PlayerID{"p-alice", "p-bob"},
				QuickAmounts:    [model.QuickAmountCount]int64{5, 25, 125},
			}},
			decoded: &dispatch.UpdateSettingsPayload{},
		},
		{
			name:  "settings before lobby state",
			line:  "settings balance=10",
			state: &PlayState{Code: "ABCDE"},
			errIs: errNoLobbyState,
		},
		{
			name:  "settings with wrong quick count",
			line:  "settings quick=1,2",
			state: seated,
			errIs: nil,
		},
		{
			name:    "undo latest",
			line:    "undo",
			state:   seated,
			intent:  dispatch.IntentUndoTransaction,
			payload: &dispatch.CodePayload{Code: "ABCDE"},
			decoded: &dispatch.CodePayload{},
		},
		{
			name:    "undo specific",
			line:    "undo #3",
			state:   seated,
			intent:  dispatch.IntentUndoSpecificTransaction,
			payload: &dispatch.UndoSpecificTransactionPayload{Code: "ABCDE", TransactionID: 3},
			decoded: &dispatch.UndoSpecificTransactionPayload{},
		},
		{
			name:    "history",
			line:    "history",
			state:   seated,
			intent:  dispatch.IntentGetTransactions,
			payload: &dispatch.CodePayload{Code: "ABCDE"},
			decoded: &dispatch.CodePayload{},
		},
		{
			name:  "undo with a non-numeric id",
			line:  "undo latest",
			state: seated,
			errIs: errInvalidTransactionID,
		},
		{
			name:  "unknown",
			line:  "dance",
			state: seated,
			errIs: errUnknownInput,
		},
		{
			name:  "usage",
			line:  "join ABCDE",
			errIs: errUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand(tt.line, tt.state)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
				return
			}
			if tt.intent == "" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cmd.Message)
			assert.Equal(t, string(tt.intent), cmd.Message.Type)
			require.NoError(t, cmd.Message.Decode(tt.decoded))
			assert.Equal(t, tt.payload, tt.decoded)
		})
	}
}

func TestParseCommandLocal(t *testing.T) {
	cmd, err := ParseCommand("   ", nil)
	require.NoError(t, err)
	assert.Equal(t, Command{}, cmd)

	cmd, err = ParseCommand("help", nil)
	require.NoError(t, err)
	assert.True(t, cmd.Help)

	cmd, err = ParseCommand("QUIT", nil)
	require.NoError(t, err)
	assert.True(t, cmd.Quit)
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type CLISuite struct {
	suite.Suite
	app     *factory.TestApp
	server  *httptest.Server
	ctx     context.Context
	cancel  context.CancelFunc
	profile string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.app = factory.NewTestApp()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.app.Dispatcher.Run(s.ctx)
	s.server = httptest.NewServer(s.app.Router(s.ctx))
	s.profile = filepath.Join(s.T().TempDir(), "profile.toml")
}

func (s *CLISuite) TearDownTest() {
	s.server.Close()
	s.cancel()
}

// run executes bankctl in-process against the test server
func (s *CLISuite) run(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	err := s.runTo(&out, stdin, args...)
	return out.String(), err
}

func (s *CLISuite) runTo(out io.Writer, stdin string, args ...string) error {
	root := NewRootCmd()
	root.SetArgs(append([]string{"--server", s.server.URL, "--profile", s.profile}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(s.ctx)
}

func (s *CLISuite) TestHealth() {
	out, err := s.run("", "health")
	s.Require().NoError(err)
	s.Contains(out, "Status: ok")
}

func (s *CLISuite) TestCode() {
	s.app.MockRandom.QueueString("CODES")

	out, err := s.run("", "code")
	s.Require().NoError(err)
	s.Contains(out, "Code: CODES")
}

func (s *CLISuite) TestCodeJSON() {
	s.app.MockRandom.QueueString("CODES")

	out, err := s.run("", "code", "-o", "json")
	s.Require().NoError(err)
	s.JSONEq(`{"code":"CODES"}`, out)
}

func (s *CLISuite) TestLobbyNotFound() {
	_, err := s.run("", "lobby", "get", "NOPE1")
	s.Require().Error(err)
	s.Contains(err.Error(), "LOBBY_NOT_FOUND")
}

func (s *CLISuite) TestLobbyGetWithoutCodeOrSeat() {
	_, err := s.run("", "lobby", "get")
	s.ErrorIs(err, errNoCode)
}

func (s *CLISuite) TestResumeWithoutSavedSeat() {
	_, err := s.run("", "play", "--resume")
	s.ErrorIs(err, errNoSavedSeat)
}

// Test: create and start over the prompt, then reclaim the seat and query over REST
func (s *CLISuite) TestPlayCreateStartResume() {
	s.app.MockRandom.QueueString("TABLE")

	out, err := s.run("start\n", "play", "--name", "Alice")
	s.Require().NoError(err)
	s.Contains(out, "Joined TABLE as")
	s.Contains(out, "Lobby: TABLE")

	saved, err := LoadProfile(s.profile)
	s.Require().NoError(err)
	s.Require().NotNil(saved.Seat)
	s.Equal(model.SessionCode("TABLE"), saved.Seat.Code)
	s.NotEmpty(saved.Seat.Token)
	s.Equal(s.server.URL, saved.Server)

	s.Require().Eventually(func() bool {
		_, err := s.app.Dispatcher.QueryGame(s.ctx, "TABLE")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	out, err = s.run("", "play", "--resume")
	s.Require().NoError(err)
	s.Contains(out, "Joined TABLE as "+string(saved.Seat.PlayerID))
	s.Contains(out, "Game: TABLE")

	out, err = s.run("", "game", "get")
	s.Require().NoError(err)
	s.Contains(out, "Alice: 1500")

	out, err = s.run("", "history")
	s.Require().NoError(err)
	s.Contains(out, "No transactions")
}

func (s *CLISuite) TestPlayResumeWithBadToken() {
	s.app.MockRandom.QueueString("TABLE")

	_, err := s.run("start\n", "play", "--name", "Alice")
	s.Require().NoError(err)

	saved, err := LoadProfile(s.profile)
	s.Require().NoError(err)
	saved.Seat.Token = "wrong"
	s.Require().NoError(SaveProfile(s.profile, saved))

	s.Require().Eventually(func() bool {
		_, err := s.app.Dispatcher.QueryGame(s.ctx, "TABLE")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err = s.run("", "play", "--resume")
	s.Require().Error(err)
	s.Contains(err.Error(), "INVALID_SEAT_TOKEN")
}

func (s *CLISuite) TestPlayJoinUnknownLobby() {
	_, err := s.run("", "play", "--name", "Bob", "--code", "NOPE1")
	s.Require().Error(err)
	s.Contains(err.Error(), "LOBBY_NOT_FOUND")
}

func (s *CLISuite) TestPlayReportsPromptErrors() {
	s.app.MockRandom.QueueString("TABLE")

	out, err := s.run("dance\nhelp\nquit\n", "play", "--name", "Alice")
	s.Require().NoError(err)
	s.Contains(out, "Error: unknown command")
	s.Contains(out, "Commands:")
}

// Test: events streams the snapshot and ends when the session closes
func (s *CLISuite) TestEventsUntilSessionClosed() {
	s.app.MockRandom.QueueString("WATCH")

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	create, err := dispatch.NewMessage(string(dispatch.IntentCreateLobby), dispatch.CreateLobbyPayload{Name: "Host"})
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(create))
	s.Require().Eventually(func() bool {
		_, err := s.app.Dispatcher.QueryLobby(s.ctx, "WATCH")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- s.runTo(out, "", "events", "WATCH") }()

	s.Require().Eventually(func() bool {
		hub := s.app.HubManager.GetHub("WATCH")
		return hub != nil && hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	leave, err := dispatch.NewMessage(string(dispatch.IntentLeaveLobby), dispatch.CodePayload{Code: "WATCH"})
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(leave))

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("events did not stop after the session closed")
	}

	s.Contains(out.String(), "Connected to session WATCH")
	s.Contains(out.String(), "lobby-updated")
	s.Contains(out.String(), "session-closed")
}

func (s *CLISuite) TestEventsUnknownSession() {
	_, err := s.run("", "events", "NOPE1")
	s.Require().Error(err)
	s.Contains(err.Error(), "404")
}
