package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

const PushbulletEndpoint = "https://api.pushbullet.com/v2/pushes"

type Pushbullet struct {
	token    string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

type pushNote struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func NewPushbullet(token string, log zerolog.Logger) *Pushbullet {
	return &Pushbullet{
		token:    token,
		endpoint: PushbulletEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// WithEndpoint points the client at another API base (tests, proxies).
func (p *Pushbullet) WithEndpoint(url string) *Pushbullet {
	p.endpoint = url
	return p
}

func (p *Pushbullet) Notify(title, body string) <-chan error {
	return dispatch(p.log, "pushbullet", func() error {
		return p.send(context.Background(), title, body)
	})
}

func (p *Pushbullet) send(ctx context.Context, title, body string) error {
	payload, err := sonic.Marshal(pushNote{Type: "note", Title: title, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Access-Token", p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushbullet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pushbullet: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
