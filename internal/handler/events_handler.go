package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/service"
)

const eventsPingInterval = 30 * time.Second

// EventsHandler streams grading events to dashboards over a websocket.
type EventsHandler struct {
	events       service.GradingEventService
	logger       zerolog.Logger
	pingInterval time.Duration
}

// NewEventsHandler constructs an EventsHandler.
func NewEventsHandler(events service.GradingEventService, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		events:       events,
		logger:       logger.With().Str("component", "events_handler").Logger(),
		pingInterval: eventsPingInterval,
	}
}

// Register binds the websocket route.
func (h *EventsHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.stream))
}

func (h *EventsHandler) stream(conn *websocket.Conn) {
	logger := h.logger.With().
		Interface("professor_id", conn.Locals(middleware.LocalProfessorID)).
		Interface("correlation_id", conn.Locals("correlation_id")).
		Logger()

	events, cancel := h.events.Subscribe()
	defer cancel()

	// Dashboards never send data; reading only detects the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info().Msg("grading event stream connected")
	defer logger.Info().Msg("grading event stream disconnected")

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("grading event write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("grading event ping failed")
				return
			}
		case <-closed:
			return
		}
	}
}
