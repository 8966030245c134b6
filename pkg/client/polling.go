package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"channel-chat/internal/models"
)

// PollingDialer opens the HTTP long-poll fallback transport. Same wire
// events as the socket, different framing.
type PollingDialer struct {
	// BaseURL of the server, e.g. "http://localhost:8080".
	BaseURL string
	Client  *http.Client
}

func (d *PollingDialer) Dial(ctx context.Context, channelID, token string) (Transport, error) {
	httpClient := d.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := fmt.Sprintf("%s/poll?token=%s&channel=%s",
		d.BaseURL, url.QueryEscape(token), url.QueryEscape(channelID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling dial failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: server said %s", ErrRejected, resp.Status)
	default:
		return nil, fmt.Errorf("polling dial failed: unexpected status %s", resp.Status)
	}

	var opened struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&opened); err != nil {
		return nil, fmt.Errorf("polling dial failed: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	t := &pollTransport{
		base:      d.BaseURL,
		sessionID: opened.SessionID,
		client:    httpClient,
		events:    make(chan models.Event, 64),
		cancel:    cancel,
	}
	go t.pollLoop(loopCtx)
	return t, nil
}

type pollTransport struct {
	base      string
	sessionID string
	client    *http.Client
	events    chan models.Event
	cancel    context.CancelFunc
}

func (t *pollTransport) Send(event models.Event) error {
	switch event.Type {
	case models.EventLeave:
		return t.leave()
	case models.EventMessage:
	default:
		return nil
	}

	body, err := json.Marshal(event.Msg())
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/poll/%s/send", t.base, t.sessionID)
	resp, err := t.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("polling send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("polling send failed: unexpected status %s", resp.Status)
	}
	return nil
}

func (t *pollTransport) Receive() <-chan models.Event {
	return t.events
}

func (t *pollTransport) Close() error {
	t.cancel()
	return nil
}

func (t *pollTransport) leave() error {
	endpoint := fmt.Sprintf("%s/poll/%s", t.base, t.sessionID)
	req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("polling leave failed: %w", err)
	}
	resp.Body.Close()
	return nil
}

// pollLoop is the long-poll read side: one outstanding GET at a time,
// each returning an ordered batch of events.
func (t *pollTransport) pollLoop(ctx context.Context) {
	defer close(t.events)

	endpoint := fmt.Sprintf("%s/poll/%s", t.base, t.sessionID)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return
		}

		var batch []models.Event
		err = json.NewDecoder(resp.Body).Decode(&batch)
		resp.Body.Close()
		if err != nil {
			return
		}

		for _, event := range batch {
			select {
			case t.events <- event:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
