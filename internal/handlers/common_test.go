package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/credentials"
	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
	"github.com/hellolucient/nether-chat-sub000/internal/grants"
	"github.com/hellolucient/nether-chat-sub000/internal/messages"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func newTestContext(t *testing.T, e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	httpReq := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		httpReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(httpReq, rec), rec
}

// asWallet injects JWT claims the way echo-jwt does after verification.
func asWallet(c echo.Context, wallet string) {
	c.Set("user", &jwt.Token{
		Valid:  true,
		Claims: jwt.MapClaims{"sub": wallet, "wallet": wallet},
	})
}

type fakeCreds struct {
	creds    map[string]credentials.Credential
	assigned []credentials.Credential
}

func (f *fakeCreds) Token(ctx context.Context, wallet, fallback string) (string, error) {
	if cred, ok := f.creds[wallet]; ok {
		return cred.Token, nil
	}
	return fallback, nil
}

func (f *fakeCreds) Get(ctx context.Context, wallet string) (credentials.Credential, error) {
	cred, ok := f.creds[wallet]
	if !ok {
		return credentials.Credential{}, credentials.ErrCredentialNotFound
	}
	return cred, nil
}

func (f *fakeCreds) Assign(ctx context.Context, wallet, token, displayName string) (credentials.Credential, error) {
	cred := credentials.Credential{WalletAddress: wallet, Token: token, DisplayName: displayName}
	if f.creds == nil {
		f.creds = make(map[string]credentials.Credential)
	}
	f.creds[wallet] = cred
	f.assigned = append(f.assigned, cred)
	return cred, nil
}

type fakeGrants struct {
	admins   map[string]bool
	channels map[string][]string
	pruned   int64
	upserts  []grants.Grant
}

func (f *fakeGrants) HasChannel(ctx context.Context, wallet, channelID string) (bool, error) {
	for _, id := range f.channels[wallet] {
		if id == channelID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGrants) IsAdmin(ctx context.Context, wallet string) (bool, error) {
	return f.admins[wallet], nil
}

func (f *fakeGrants) ListChannelIDs(ctx context.Context, wallet string) ([]string, error) {
	return f.channels[wallet], nil
}

func (f *fakeGrants) PruneUnknownChannels(ctx context.Context, liveChannelIDs []string) (int64, error) {
	return f.pruned, nil
}

func (f *fakeGrants) Get(ctx context.Context, wallet string) (grants.Grant, error) {
	channels, ok := f.channels[wallet]
	if !ok && !f.admins[wallet] {
		return grants.Grant{}, grants.ErrGrantNotFound
	}
	return grants.Grant{WalletAddress: wallet, ChannelIDs: channels, IsAdmin: f.admins[wallet]}, nil
}

func (f *fakeGrants) Upsert(ctx context.Context, wallet string, channelIDs []string, isAdmin bool) (grants.Grant, error) {
	if f.channels == nil {
		f.channels = make(map[string][]string)
	}
	f.channels[wallet] = channelIDs
	grant := grants.Grant{WalletAddress: wallet, ChannelIDs: channelIDs, IsAdmin: isAdmin}
	f.upserts = append(f.upserts, grant)
	return grant, nil
}

type fakeChannelGateway struct {
	channels []gateway.Channel
	err      error
}

func (f *fakeChannelGateway) Channels(ctx context.Context, token string) ([]gateway.Channel, error) {
	return f.channels, f.err
}

type fakeUnread struct {
	unread []string
}

func (f *fakeUnread) Evaluate(ctx context.Context, wallet string) []string {
	if f.unread == nil {
		return []string{}
	}
	return f.unread
}

type fakeMessageStore struct {
	messages map[string][]messages.CachedMessage
	err      error
}

func (f *fakeMessageStore) ListChannel(ctx context.Context, channelID string, limit int) ([]messages.CachedMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages[channelID], nil
}

type fakeReadState struct {
	lastViewed map[string]time.Time
	marked     []string
}

func (f *fakeReadState) MarkViewed(ctx context.Context, wallet, channelID string) error {
	f.marked = append(f.marked, channelID)
	return nil
}

func (f *fakeReadState) LastViewed(ctx context.Context, wallet, channelID string) (time.Time, bool, error) {
	marker, ok := f.lastViewed[channelID]
	return marker, ok, nil
}

type fakeSendGateway struct {
	sent    []gateway.SendRequest
	tokens  []string
	sendErr error
}

func (f *fakeSendGateway) Send(ctx context.Context, token, channelID string, req gateway.SendRequest) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.tokens = append(f.tokens, token)
	f.sent = append(f.sent, req)
	return nil
}

type fakeSyncer struct {
	synced []string
	err    error
}

func (f *fakeSyncer) SyncChannel(ctx context.Context, wallet, channelID string, limit int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.synced = append(f.synced, channelID)
	return 0, nil
}

type fakeValidatorGateway struct {
	botName string
	err     error
}

func (f *fakeValidatorGateway) Validate(ctx context.Context, token string) (string, error) {
	return f.botName, f.err
}
