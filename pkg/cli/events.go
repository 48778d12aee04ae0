package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var eventsTopics string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail the server's event stream",
	Long: `Connects to the /events WebSocket and prints events as they arrive.
Topics: request-log, mock-set-changed, scenario-switched, metrics, alerts.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		wsURL, err := eventsURL(adminURL, eventsTopics)
		if err != nil {
			return err
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := dialer.Dial(wsURL, nil)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("connecting to %s: %w (status %d)", wsURL, err, resp.StatusCode)
			}
			return fmt.Errorf("connecting to %s: %w", wsURL, err)
		}
		defer func() { _ = conn.Close() }()

		fmt.Fprintf(os.Stderr, "connected to %s\n", wsURL)

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		msgCh := make(chan []byte)
		errCh := make(chan error, 1)
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					errCh <- err
					return
				}
				msgCh <- data
			}
		}()

		for {
			select {
			case data := <-msgCh:
				printEvent(data)
			case err := <-errCh:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			case <-interrupt:
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
		}
	},
}

// eventsURL turns the admin base URL into the /events WebSocket URL.
func eventsURL(base, topics string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid admin URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported admin URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/events"
	if topics != "" {
		q := u.Query()
		q.Set("topics", topics)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func printEvent(data []byte) {
	if jsonOutput {
		fmt.Println(string(data))
		return
	}
	var event struct {
		Topic     string          `json:"topic"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%s [%s] %s\n",
		event.Timestamp.Format("15:04:05.000"), event.Topic, string(event.Payload))
}

func init() {
	eventsCmd.Flags().StringVar(&eventsTopics, "topics", "", "Comma-separated topics to subscribe to (default: all)")
	rootCmd.AddCommand(eventsCmd)
}
