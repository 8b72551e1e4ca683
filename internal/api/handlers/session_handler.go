package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/taskdeck/internal/auth"
	"github.com/isdelr/taskdeck/internal/navigation"
	ws "github.com/isdelr/taskdeck/internal/websocket"
	"github.com/rs/zerolog/log"
)

const sessionEventTimeout = 30 * time.Second

// AuthFactory returns the authenticator for a new session.
type AuthFactory func() auth.Authenticator

// SessionHandler drives one navigation.App per websocket connection.
type SessionHandler struct {
	hub      *ws.Hub
	store    navigation.TaskStore
	newAuth  AuthFactory
	opts     navigation.Options
	upgrader websocket.Upgrader
}

// NewSessionHandler creates a new SessionHandler. Origins are checked against
// allowedOrigins; "*" allows any.
func NewSessionHandler(hub *ws.Hub, store navigation.TaskStore, newAuth AuthFactory, opts navigation.Options, allowedOrigins []string) *SessionHandler {
	h := &SessionHandler{hub: hub, store: store, newAuth: newAuth, opts: opts}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// credentials is the payload of login and register.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type taskRef struct {
	ID int64 `json:"id"`
}

type taskFields struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Serve upgrades the connection and starts the session.
func (h *SessionHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	app := navigation.NewApp(h.store, h.newAuth(), h.opts)
	client := ws.NewClient(h.hub, conn)
	h.hub.Add(client)

	ctx, cancel := context.WithTimeout(context.Background(), sessionEventTimeout)
	app.Start(ctx)
	cancel()
	client.Deliver(ws.NewStateMessage(app.State()))

	go client.WritePump()

	// The session ends when the read side does. Removing the client closes
	// its send channel, which stops WritePump.
	go func() {
		client.ReadPump(func(c *ws.Client, message []byte) {
			h.handleMessage(app, c, message)
		})

		ctx, cancel := context.WithTimeout(context.Background(), sessionEventTimeout)
		defer cancel()
		if err := app.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to end session on disconnect")
		}
		h.hub.Remove(client)
	}()
}

// handleMessage applies one inbound action to app and answers with the new
// state or an error.
func (h *SessionHandler) handleMessage(app *navigation.App, client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		client.Deliver(ws.NewErrorMessage("Invalid message"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sessionEventTimeout)
	defer cancel()

	changed, err := h.apply(ctx, app, msg)
	if err != nil {
		log.Debug().Err(err).Str("action", msg.Action).Msg("Rejected session action")
		client.Deliver(ws.NewErrorMessage(err.Error()))
		return
	}

	state := app.State()
	client.Deliver(ws.NewStateMessage(state))
	if changed && state.Notice == "" {
		h.hub.Publish(ws.NewTasksChangedMessage())
	}
}

// apply dispatches msg. It reports whether the task table may have changed.
func (h *SessionHandler) apply(ctx context.Context, app *navigation.App, msg ws.Message) (bool, error) {
	switch msg.Action {
	case "state":
		return false, nil
	case "refresh":
		app.Refresh(ctx)
		return false, nil
	case "back":
		app.Back(ctx)
		return false, nil
	case "open_register":
		return false, app.OpenRegister(ctx)
	case "create_task":
		return false, app.CreateTask(ctx)
	case "logout":
		return false, app.Logout(ctx)

	case "login", "register":
		var p credentials
		if err := decodePayload(msg, &p); err != nil {
			return false, err
		}
		if msg.Action == "login" {
			return false, app.SubmitLogin(ctx, p.Email, p.Password)
		}
		return false, app.SubmitRegister(ctx, p.Email, p.Password)

	case "modify_task", "delete_task":
		var p taskRef
		if err := decodePayload(msg, &p); err != nil {
			return false, err
		}
		if msg.Action == "modify_task" {
			return false, app.ModifyTask(ctx, p.ID)
		}
		return true, app.DeleteTask(ctx, p.ID)

	case "save_task":
		var p taskFields
		if err := decodePayload(msg, &p); err != nil {
			return false, err
		}
		return true, app.SubmitTask(ctx, p.Name, p.StartDate, p.EndDate)

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		return false, fmt.Errorf("Unknown action: %s", msg.Action)
	}
}

func decodePayload(msg ws.Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("Missing payload for %s", msg.Action)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("Invalid payload for %s", msg.Action)
	}
	return nil
}
