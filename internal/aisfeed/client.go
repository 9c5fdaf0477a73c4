// Package aisfeed maintains a live AIS position feed for the ferry over a
// websocket subscription to aisstream.io. The rest of the service only sees
// the most recent fix; staleness handling is the simulator's job.
package aisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
)

// subscription is the upstream subscribe message. Field names are case
// sensitive on the wire.
type subscription struct {
	APIKey             string         `json:"APIKey"`
	BoundingBoxes      [][][2]float64 `json:"BoundingBoxes"`
	FiltersShipMMSI    []string       `json:"FiltersShipMMSI"`
	FilterMessageTypes []string       `json:"FilterMessageTypes"`
}

type streamMessage struct {
	MetaData struct {
		MMSI     int64  `json:"MMSI"`
		ShipName string `json:"ShipName"`
		TimeUTC  string `json:"time_utc"`
	} `json:"MetaData"`
	Message struct {
		PositionReport *struct {
			Latitude           float64 `json:"Latitude"`
			Longitude          float64 `json:"Longitude"`
			Sog                float64 `json:"Sog"`
			Cog                float64 `json:"Cog"`
			TrueHeading        float64 `json:"TrueHeading"`
			NavigationalStatus int     `json:"NavigationalStatus"`
		} `json:"PositionReport"`
	} `json:"Message"`
}

// Client owns the websocket connection and the latest fix. Start launches a
// background goroutine that reconnects on any failure; Latest never blocks.
type Client struct {
	cfg config.AISConfig
	log *slog.Logger

	mu     sync.RWMutex
	latest entities.AISFix
}

func NewClient(cfg config.AISConfig, log *slog.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}

// Start begins streaming until ctx is canceled. Without an API key the feed
// stays silently disabled and the simulator runs on schedule alone.
func (c *Client) Start(ctx context.Context) {
	if c.cfg.APIKey == "" {
		c.log.Info("ais feed disabled, no api key configured")
		return
	}
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	for {
		if err := c.connectAndRead(ctx); err != nil {
			c.log.Warn("ais stream disconnected", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.StreamURL, err)
	}
	defer conn.Close()

	sub := subscription{
		APIKey: c.cfg.APIKey,
		BoundingBoxes: [][][2]float64{{
			{c.cfg.BoundingBox[0].Lat, c.cfg.BoundingBox[0].Lng},
			{c.cfg.BoundingBox[1].Lat, c.cfg.BoundingBox[1].Lng},
		}},
		FiltersShipMMSI:    []string{c.cfg.FerryMMSI},
		FilterMessageTypes: []string{"PositionReport"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.Info("ais stream subscribed", "mmsi", c.cfg.FerryMMSI)

	// Close the connection when the context dies so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Debug("ais message parse failed", "error", err)
		return
	}
	if fmt.Sprint(msg.MetaData.MMSI) != c.cfg.FerryMMSI || msg.Message.PositionReport == nil {
		return
	}

	pos := msg.Message.PositionReport
	fix := entities.AISFix{
		MMSI:       c.cfg.FerryMMSI,
		Name:       msg.MetaData.ShipName,
		Location:   entities.NewLocation(pos.Latitude, pos.Longitude),
		SpeedKn:    pos.Sog,
		Course:     pos.Cog,
		Heading:    pos.TrueHeading,
		NavStatus:  navStatusText(pos.NavigationalStatus),
		ReceivedAt: time.Now(),
	}

	c.mu.Lock()
	c.latest = fix
	c.mu.Unlock()

	c.log.Debug("ais fix", "lat", fix.Location.Lat, "lng", fix.Location.Lng, "speed", fix.SpeedKn)
}

// Latest returns the most recent fix and whether one has been received at
// all. Freshness is judged by the caller against its own clock.
func (c *Client) Latest() (entities.AISFix, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, !c.latest.ReceivedAt.IsZero()
}

func navStatusText(code int) string {
	switch code {
	case 0:
		return "Under way using engine"
	case 1:
		return "At anchor"
	case 5:
		return "Moored"
	default:
		return "Under way"
	}
}
