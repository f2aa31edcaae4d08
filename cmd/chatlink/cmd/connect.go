package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mychat/chatlink/pkg/chatlink/chat"
	"github.com/mychat/chatlink/pkg/chatlink/config"
	"github.com/mychat/chatlink/pkg/chatlink/filter"
	"github.com/mychat/chatlink/pkg/chatlink/otel"
	"github.com/mychat/chatlink/pkg/chatlink/protocol"
	"github.com/mychat/chatlink/pkg/chatlink/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect [session-id]",
	Short: "Join a chat session and exchange messages",
	Long: `Join a chat session over WebSocket, print its events to stdout and send
lines read from stdin as text messages.

Stored history is printed first when the REST API is reachable. If the
connection drops, chatlink reconnects at a fixed interval until the
reconnect budget is used up, then backfills the messages it missed.

Input commands:
  /typing on|off          send a typing indicator
  /send <type> <content>  send image, file, voice or video content
  /quit                   leave the session

Events are printed as JSON lines and can be shaped with a jq --filter, which
sees $type and $session.

Examples:
  chatlink connect --origin https://chat.example.com --token $TOKEN 42
  chatlink connect -c chatlink.hcl --filter '.payload.content'
  chatlink connect 42 --filter 'select($type == "message") | .payload'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

var (
	connectFilter            string
	connectNoHistory         bool
	connectMaxAttempts       int
	connectReconnectInterval time.Duration
	connectDialTimeout       time.Duration
)

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVarP(&connectFilter, "filter", "f", "", "jq query applied to every printed event")
	connectCmd.Flags().BoolVar(&connectNoHistory, "no-history", false, "do not load or backfill history")
	connectCmd.Flags().IntVar(&connectMaxAttempts, "max-reconnect-attempts", session.DefaultMaxReconnectAttempts, "reconnect budget per outage (0 disables reconnects)")
	connectCmd.Flags().DurationVar(&connectReconnectInterval, "reconnect-interval", session.DefaultReconnectInterval, "delay between reconnect attempts")
	connectCmd.Flags().DurationVar(&connectDialTimeout, "dial-timeout", session.DefaultDialTimeout, "WebSocket dial timeout")
}

func runConnect(cmd *cobra.Command, args []string) error {
	var sessionID string
	if len(args) > 0 {
		sessionID = args[0]
	}

	s, err := loadSettings(sessionID)
	if err != nil {
		return err
	}
	logger := s.logger
	defer logger.Sync()

	applyConnectFlags(cmd, &s.conn)

	endpoint, err := s.conn.Endpoint()
	if err != nil {
		return err
	}

	query := s.cfg.Filter
	if cmd.Flags().Changed("filter") {
		query = connectFilter
	}
	eventFilter, err := filter.Compile(query, logger)
	if err != nil {
		return err
	}

	// Create a context that can be cancelled on signal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	printer := newEventPrinter(cmd.OutOrStdout(), eventFilter, endpoint.SessionID, logger)
	done := make(chan string, 1)
	finish := func(reason string) {
		select {
		case done <- reason:
		default:
		}
	}

	provider := otel.NewProvider("chatlink", Version)

	roomBuilder := chat.NewRoom().
		WithManager(s.conn.Apply(session.NewManager().
			WithEndpoint(endpoint).
			WithLogger(logger).
			WithMetricsProvider(provider).
			WithTracingProvider(provider))).
		WithLogger(logger).
		WithHandler(session.NewLoggingHandler(session.HandlerFuncs{
			Close: func(info session.CloseInfo) {
				if info.Exhausted {
					finish("reconnect budget exhausted")
				}
			},
		}, logger, zap.DebugLevel)).
		OnMessage(func(msg protocol.ChatMessage) {
			printer.PrintMessage(ctx, msg)
		}).
		OnTyping(func(status protocol.TypingStatus) {
			printer.Print(ctx, protocol.Event{Type: protocol.TypeTyping, Typing: &status})
		}).
		OnSessionEnd(func(end *protocol.SessionEnd) {
			printer.Print(ctx, protocol.Event{Type: protocol.TypeSessionEnd, SessionEnd: end})
			finish("session ended")
		})

	if !connectNoHistory {
		client, err := s.apiClient()
		if err != nil {
			logger.Warn("History disabled", zap.Error(err))
		} else {
			roomBuilder.WithHistory(client)
		}
	}

	room, err := roomBuilder.Build()
	if err != nil {
		return fmt.Errorf("failed to create chat room: %w", err)
	}

	if !connectNoHistory {
		historyCtx, historyCancel := context.WithTimeout(ctx, commandTimeout)
		if n, err := room.LoadHistory(historyCtx); err != nil {
			logger.Warn("Failed to load history", zap.Error(err))
		} else {
			logger.Info("History loaded", zap.Int("messages", n))
		}
		historyCancel()
	}

	if err := room.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to chat session: %w", err)
	}
	defer func() {
		if closeErr := room.Close(); closeErr != nil {
			logger.Warn("Error during session close", zap.Error(closeErr))
		}
	}()

	logger.Info("Joined chat session",
		zap.String("url", endpoint.Redacted()),
		zap.String("session_id", endpoint.SessionID),
	)

	go readInput(cmd.InOrStdin(), room, logger, finish)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Listening for events... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case reason := <-done:
		logger.Info("Leaving chat session", zap.String("reason", reason))
	}

	cancel()
	logger.Info("Shutdown complete")
	return nil
}

// applyConnectFlags lets explicitly set connect flags override the configuration.
func applyConnectFlags(cmd *cobra.Command, cc *config.ConnectionConfig) {
	if cmd.Flags().Changed("max-reconnect-attempts") {
		n := connectMaxAttempts
		cc.MaxReconnectAttempts = &n
	}
	if cmd.Flags().Changed("reconnect-interval") || cc.ReconnectInterval == 0 {
		cc.ReconnectInterval = connectReconnectInterval
	}
	if cmd.Flags().Changed("dial-timeout") || cc.DialTimeout == 0 {
		cc.DialTimeout = connectDialTimeout
	}
}

// sender is the part of a chat room driven by user input.
type sender interface {
	SendText(content string) error
	SendContent(contentType protocol.ContentType, content string) error
	SendTyping(isTyping bool) error
}

// readInput sends each input line until /quit. At end of input the session
// stays joined until a signal or session end.
func readInput(in io.Reader, room sender, logger *zap.Logger, finish func(string)) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		quit, err := handleInput(room, line)
		if err != nil {
			logger.Warn("Failed to send", zap.Error(err))
		}
		if quit {
			finish("quit")
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("Failed to read input", zap.Error(err))
		return
	}
	logger.Debug("Input closed")
}

// handleInput sends one line of input. It reports true when the user asked
// to leave.
func handleInput(room sender, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, room.SendText(line)
	}

	command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case "/quit":
		return true, nil
	case "/typing":
		switch rest {
		case "on":
			return false, room.SendTyping(true)
		case "off":
			return false, room.SendTyping(false)
		default:
			return false, fmt.Errorf("usage: /typing on|off")
		}
	case "/send":
		contentType, content, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(content) == "" {
			return false, fmt.Errorf("usage: /send <type> <content>")
		}
		return false, room.SendContent(protocol.ContentType(contentType), strings.TrimSpace(content))
	default:
		return false, fmt.Errorf("unknown command %s", command)
	}
}
