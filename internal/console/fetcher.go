package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"Helpdesk/internal/model"
)

// RESTFetcher talks to the bulk endpoints on the app server. The identity
// headers mirror what the session provider injects in front of the API.
type RESTFetcher struct {
	baseURL  string
	client   *http.Client
	operator model.Operator
}

func NewRESTFetcher(baseURL string, operator model.Operator) *RESTFetcher {
	return &RESTFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{},
		operator: operator,
	}
}

func (f *RESTFetcher) FetchConversations(ctx context.Context) ([]model.Conversation, error) {
	var body struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	if err := f.get(ctx, "/hd/api/chat/conversations", &body); err != nil {
		return nil, err
	}
	return body.Conversations, nil
}

func (f *RESTFetcher) FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var body struct {
		Messages []model.Message `json:"messages"`
	}
	path := "/hd/api/chat/conversations/" + conversationID + "/messages"
	if err := f.get(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (f *RESTFetcher) DeleteConversation(ctx context.Context, conversationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		f.baseURL+"/hd/api/chat/conversations/"+conversationID, nil)
	if err != nil {
		return err
	}
	f.identify(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return statusError(resp.StatusCode)
}

func (f *RESTFetcher) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return err
	}
	f.identify(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (f *RESTFetcher) identify(req *http.Request) {
	req.Header.Set("X-User-Id", f.operator.UserID)
	req.Header.Set("X-User-Name", f.operator.UserName)
	req.Header.Set("X-User-Avatar", f.operator.UserAvatar)
	req.Header.Set("X-User-Role", f.operator.Role)
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthenticated
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}
