package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Receipt is the gateway's acknowledgement of an outbound message.
type Receipt struct {
	ID         string    `json:"id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Gateway is the external satellite-SMS send capability. Transport
// mechanics (delivery retries, satellite scheduling) live on the other side
// of it.
type Gateway interface {
	Send(ctx context.Context, toPhone string, segments []string) (Receipt, error)
}

// HTTPGateway posts outbound messages to the gateway's HTTP API,
// authenticated with a shared secret header.
type HTTPGateway struct {
	url    string
	secret string
	client *http.Client
	log    *slog.Logger
}

func NewHTTPGateway(url, secret string, timeout time.Duration, log *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		log:    log.With("component", "gateway"),
	}
}

func (g *HTTPGateway) Send(ctx context.Context, toPhone string, segments []string) (Receipt, error) {
	payload, err := json.Marshal(map[string]any{
		"to":       toPhone,
		"segments": segments,
	})
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/messages", bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Secret", g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, fmt.Errorf("gateway: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Receipt{}, err
	}
	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// LogGateway is a stand-in for local development: messages go to the log.
type LogGateway struct {
	Log *slog.Logger
}

func (g *LogGateway) Send(_ context.Context, toPhone string, segments []string) (Receipt, error) {
	for i, seg := range segments {
		g.Log.Info("outbound sms", "to", toPhone, "segment", i+1, "of", len(segments), "body", seg)
	}
	return Receipt{ID: "log", AcceptedAt: time.Now().UTC()}, nil
}
