package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/tablebank/internal/dispatch"
)

const closeWait = 2 * time.Second

var errNoSavedSeat = errors.New("no saved seat in the profile to resume")

func newPlayCmd() *cobra.Command {
	var (
		name   string
		code   string
		resume bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take a seat at the table",
		Long: `Open a WebSocket connection and drive a session from an interactive prompt.

With --name a new lobby is created. With --name and --code an existing lobby is
joined. With --resume the seat saved in the profile is reclaimed. The seat token
handed out on create or join is saved to the profile.

Type help at the prompt for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opening, err := openingCommand(name, code, resume)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return play(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), opening)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name; creates a lobby, or joins one with --code")
	cmd.Flags().StringVar(&code, "code", "", "Lobby code to join")
	cmd.Flags().BoolVar(&resume, "resume", false, "Reclaim the seat saved in the profile")
	cmd.MarkFlagsMutuallyExclusive("resume", "name")
	cmd.MarkFlagsMutuallyExclusive("resume", "code")

	return cmd
}

// openingCommand builds the intent sent right after connecting, if any
func openingCommand(name, code string, resume bool) (*Command, error) {
	var (
		c   Command
		err error
	)
	switch {
	case resume:
		if profile == nil || profile.Seat == nil {
			return nil, errNoSavedSeat
		}
		seat := profile.Seat
		c, err = intent(dispatch.IntentResume, dispatch.ResumePayload{
			Code:     string(seat.Code),
			PlayerID: seat.PlayerID,
			Token:    seat.Token,
		})
	case code != "" && name != "":
		c, err = intent(dispatch.IntentJoinLobby, dispatch.JoinLobbyPayload{Code: code, Name: name})
	case name != "":
		c, err = intent(dispatch.IntentCreateLobby, dispatch.CreateLobbyPayload{Name: name})
	case code != "":
		return nil, errors.New("--code needs --name")
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// playSession is one WebSocket connection driven from the prompt
type playSession struct {
	conn  *websocket.Conn
	out   *Output
	state PlayState
}

func play(ctx context.Context, in io.Reader, w io.Writer, opening *Command) error {
	wsURL, err := client.WebSocketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	s := &playSession{conn: conn, out: NewOutput(cfg.Output, w)}

	inbound := make(chan dispatch.Message)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go s.readLoop(inbound, readErr, done)

	if err := s.await(ctx, inbound, readErr, dispatch.TypeConnected); err != nil {
		return err
	}

	if opening != nil {
		if err := conn.WriteJSON(opening.Message); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		if err := s.await(ctx, inbound, readErr, dispatch.TypeJoined); err != nil {
			return err
		}
		// The lobby snapshot follows; names typed at the prompt resolve against it
		if err := s.await(ctx, inbound, readErr, dispatch.TypeLobbyUpdated); err != nil {
			return err
		}
	}

	if cfg.Output != "json" {
		s.out.PrintMessage("Type help for commands")
	}

	lines := make(chan string)
	go scanLines(in, lines, done)

	for {
		select {
		case <-ctx.Done():
			s.close(inbound, readErr)
			return nil
		case msg := <-inbound:
			s.handle(msg)
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				s.close(inbound, readErr)
				return nil
			}
			cmd, err := ParseCommand(line, &s.state)
			if err != nil {
				s.out.PrintError(err)
				continue
			}
			switch {
			case cmd.Quit:
				s.close(inbound, readErr)
				return nil
			case cmd.Help:
				s.out.PrintMessage(helpText)
			case cmd.Message != nil:
				if err := conn.WriteJSON(cmd.Message); err != nil {
					return fmt.Errorf("send failed: %w", err)
				}
			}
		}
	}
}

// await handles inbound messages until one of type want arrives. An error
// message arriving first fails the wait.
func (s *playSession) await(ctx context.Context, inbound <-chan dispatch.Message, readErr <-chan error, want string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("connection lost: %w", err)
		case msg := <-inbound:
			if msg.Type == dispatch.TypeError {
				var p dispatch.ErrorPayload
				_ = json.Unmarshal(msg.Payload, &p)
				return fmt.Errorf("%s (%s)", p.Message, p.Code)
			}
			s.handle(msg)
			if msg.Type == want {
				return nil
			}
		}
	}
}

func (s *playSession) readLoop(inbound chan<- dispatch.Message, readErr chan<- error, done <-chan struct{}) {
	for {
		var msg dispatch.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- msg:
		case <-done:
			return
		}
	}
}

func (s *playSession) handle(msg dispatch.Message) {
	switch msg.Type {
	case dispatch.TypeConnected:
		if cfg.Verbose {
			var p dispatch.ConnectedPayload
			_ = msg.Decode(&p)
			s.out.PrintMessage("Connected as " + string(p.ConnectionID))
		}
	case dispatch.TypeJoined:
		var p dispatch.JoinedPayload
		if err := msg.Decode(&p); err != nil {
			s.out.PrintError(err)
			return
		}
		if p.Code != s.state.Code {
			s.state = PlayState{}
		}
		s.state.Code = p.Code
		s.state.PlayerID = p.PlayerID
		s.out.Print(p)
		if p.SeatToken != "" {
			s.saveSeat(&Seat{Code: p.Code, PlayerID: p.PlayerID, Token: p.SeatToken})
		}
	case dispatch.TypeLobbyUpdated:
		var v dispatch.LobbyView
		if err := msg.Decode(&v); err != nil {
			s.out.PrintError(err)
			return
		}
		if v.Code == s.state.Code {
			s.state.Lobby = &v
		}
		s.out.Print(v)
	case dispatch.TypeGameUpdated:
		var v dispatch.GameView
		if err := msg.Decode(&v); err != nil {
			s.out.PrintError(err)
			return
		}
		if v.Code == s.state.Code {
			s.state.Game = &v
		}
		s.out.Print(v)
	case dispatch.TypeTransactionHistory:
		var v dispatch.TransactionHistory
		if err := msg.Decode(&v); err != nil {
			s.out.PrintError(err)
			return
		}
		s.out.Print(v)
	case dispatch.TypeKicked:
		var p dispatch.KickedPayload
		_ = msg.Decode(&p)
		s.out.Print(p)
		if p.Code == s.state.Code {
			s.state = PlayState{}
		}
		if profile != nil && profile.Seat != nil && profile.Seat.Code == p.Code {
			s.saveSeat(nil)
		}
	case dispatch.TypeError:
		var p dispatch.ErrorPayload
		_ = msg.Decode(&p)
		s.out.Print(p)
	default:
		s.out.Print(msg)
	}
}

func (s *playSession) saveSeat(seat *Seat) {
	if profile == nil {
		profile = &Profile{}
	}
	profile.Server = client.BaseURL()
	profile.Seat = seat
	if err := SaveProfile(cfg.ProfilePath, profile); err != nil {
		s.out.PrintError(err)
	}
}

// close sends a close frame and prints whatever the server flushes before
// answering it
func (s *playSession) close(inbound <-chan dispatch.Message, readErr <-chan error) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait)); err != nil {
		return
	}

	timeout := time.NewTimer(closeWait)
	defer timeout.Stop()
	for {
		select {
		case m := <-inbound:
			s.handle(m)
		case <-readErr:
			return
		case <-timeout.C:
			return
		}
	}
}

func scanLines(in io.Reader, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
}
