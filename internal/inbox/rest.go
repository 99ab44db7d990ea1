package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/communitas-app/session_layer/internal/notification"
	"github.com/communitas-app/session_layer/internal/session"
)

// RESTFetcher fetches notifications from the platform API, attaching
// the current session token as a bearer credential.
type RESTFetcher struct {
	baseURL  string
	client   *http.Client
	sessions *session.Store
}

// NewRESTFetcher creates a fetcher against the API root.
func NewRESTFetcher(baseURL string, sessions *session.Store, client *http.Client) *RESTFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTFetcher{baseURL: baseURL, client: client, sessions: sessions}
}

// ListRecent fetches the newest notifications.
func (f *RESTFetcher) ListRecent(ctx context.Context, limit int) ([]notification.Event, error) {
	var out struct {
		Notifications []notification.Event `json:"notifications"`
	}
	url := fmt.Sprintf("%s/notifications/recent?limit=%d", f.baseURL, limit)
	if err := f.get(ctx, url, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// UnreadCount fetches the server-side unread count.
func (f *RESTFetcher) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := f.get(ctx, f.baseURL+"/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (f *RESTFetcher) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token := f.sessions.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifications fetch: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
