package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"traveladvisor/internal/types"
)

// slackClient abstracts the Slack Web API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
	GetUserInfoContext(ctx context.Context, userID string) (*slackapi.User, error)
}

// socketClient abstracts the Socket Mode client methods we use.
type socketClient interface {
	RunContext(ctx context.Context) error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

// realSocketClient wraps *socketmode.Client to implement socketClient.
type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) RunContext(ctx context.Context) error { return r.client.RunContext(ctx) }
func (r *realSocketClient) EventsChan() chan socketmode.Event    { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// SlackAdapter implements Transport over Slack Socket Mode. Mentions in
// shared channels and direct messages to the bot are both reduced to
// InboundMessage; everything else on the event firehose is dropped.
type SlackAdapter struct {
	client    slackClient
	socket    socketClient
	botToken  string
	appToken  string
	botUserID string

	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan InboundMessage
}

// SlackOpts holds parameters for creating a SlackAdapter.
type SlackOpts struct {
	BotToken string // xoxb-... Slack bot token
	AppToken string // xapp-... Slack app-level token for Socket Mode
	// For testing: inject mock clients instead of the real Slack API.
	Client slackClient
	Socket socketClient
}

// NewSlackAdapter creates a Slack transport.
func NewSlackAdapter(opts SlackOpts) (*SlackAdapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slack: app token is required for socket mode")
	}
	return &SlackAdapter{
		client:   opts.Client,
		socket:   opts.Socket,
		botToken: opts.BotToken,
		appToken: opts.AppToken,
		inbound:  make(chan InboundMessage, 100),
	}, nil
}

// Connect builds the API clients and identifies the bot user so inbound
// events can be filtered and mentions stripped.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.client == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client = api
		a.socket = &realSocketClient{client: socketmode.New(api)}
	}

	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID

	a.connected = true
	return nil
}

// Listen starts the Socket Mode pump and returns the inbound channel.
func (a *SlackAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			log.Printf("slack: socket mode stopped: %v", err)
		}
	}()
	go a.pumpEvents(ctx)

	return a.inbound, nil
}

// Send posts plain text to a channel as the bot user.
func (a *SlackAdapter) Send(ctx context.Context, channel types.ID, text string) error {
	_, _, err := a.client.PostMessageContext(ctx, string(channel),
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// DisplayName resolves a Slack user id via users.info.
func (a *SlackAdapter) DisplayName(ctx context.Context, userID types.ID) (string, error) {
	user, err := a.client.GetUserInfoContext(ctx, string(userID))
	if err != nil {
		return "", fmt.Errorf("slack: user info: %w", err)
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName, nil
	}
	return user.Name, nil
}

// Close shuts the adapter down and closes the inbound channel.
func (a *SlackAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	close(a.inbound)
	return nil
}

// pumpEvents reads Socket Mode events and converts them to InboundMessages.
func (a *SlackAdapter) pumpEvents(ctx context.Context) {
	events := a.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.handleSocketEvent(evt)
		}
	}
}

func (a *SlackAdapter) handleSocketEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		a.handleEventsAPI(apiEvent)

	case socketmode.EventTypeConnected:
		log.Printf("slack: connected to Socket Mode")

	case socketmode.EventTypeConnectionError:
		log.Printf("slack: connection error: %v", evt.Data)
	}
}

func (a *SlackAdapter) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.User == a.botUserID {
			return
		}
		a.deliver(InboundMessage{
			Text:     ReduceMention(ev.Text, a.botUserID),
			Channel:  types.ID(ev.Channel),
			UserID:   types.ID(ev.User),
			Directed: true,
		})
	case *slackevents.MessageEvent:
		// Only direct messages; mentions arrive as AppMentionEvent and
		// bot echoes, edits, and joins are not conversation input.
		if ev.ChannelType != "im" || ev.User == a.botUserID || ev.BotID != "" || ev.SubType != "" {
			return
		}
		a.deliver(InboundMessage{
			Text:     strings.TrimSpace(ev.Text),
			Channel:  types.ID(ev.Channel),
			UserID:   types.ID(ev.User),
			Directed: false,
		})
	}
}

func (a *SlackAdapter) deliver(msg InboundMessage) {
	if msg.Text == "" || msg.UserID == "" {
		return
	}
	select {
	case a.inbound <- msg:
	default:
		log.Printf("slack: inbound buffer full, dropping message from %s", msg.UserID)
	}
}

// ReduceMention strips the bot's mention tag from a message and normalizes
// the remainder to lowercase trimmed text.
func ReduceMention(text, botUserID string) string {
	tag := "<@" + botUserID + ">"
	if i := strings.Index(text, tag); i >= 0 {
		text = text[i+len(tag):]
	}
	return strings.ToLower(strings.TrimSpace(text))
}
