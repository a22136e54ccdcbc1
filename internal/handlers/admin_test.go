package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
)

func TestAssignBotRequiresAdmin(t *testing.T) {
	h := NewAdminHandler(slog.Default(), &fakeCreds{}, &fakeGrants{}, &fakeValidatorGateway{})

	e := newTestEcho()
	c, _ := newTestContext(t, e, http.MethodPost, "/admin/assign-bot", `{"wallet":"wallet-1","token":"tok"}`)
	asWallet(c, "wallet-1")

	err := h.AssignBot(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestAssignBotStoresCredentialAndGrant(t *testing.T) {
	creds := &fakeCreds{}
	grantSvc := &fakeGrants{admins: map[string]bool{"admin-1": true}}
	h := NewAdminHandler(slog.Default(), creds, grantSvc, &fakeValidatorGateway{})

	e := newTestEcho()
	body := `{"wallet":"wallet-1","token":"bot-token","displayName":"Nether Bot","channelIds":["chan-1","chan-2"]}`
	c, rec := newTestContext(t, e, http.MethodPost, "/admin/assign-bot", body)
	asWallet(c, "admin-1")

	require.NoError(t, h.AssignBot(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AssignBotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "wallet-1", resp.Wallet)
	assert.Equal(t, "Nether Bot", resp.DisplayName)
	assert.Equal(t, []string{"chan-1", "chan-2"}, resp.ChannelIDs)

	require.Len(t, creds.assigned, 1)
	assert.Equal(t, "bot-token", creds.assigned[0].Token)
	require.Len(t, grantSvc.upserts, 1)
	assert.False(t, grantSvc.upserts[0].IsAdmin)
}

func TestAssignBotPreservesAdminFlag(t *testing.T) {
	grantSvc := &fakeGrants{
		admins:   map[string]bool{"admin-1": true, "wallet-1": true},
		channels: map[string][]string{"wallet-1": {"chan-1"}},
	}
	h := NewAdminHandler(slog.Default(), &fakeCreds{}, grantSvc, &fakeValidatorGateway{})

	e := newTestEcho()
	body := `{"wallet":"wallet-1","token":"bot-token","channelIds":["chan-2"]}`
	c, _ := newTestContext(t, e, http.MethodPost, "/admin/assign-bot", body)
	asWallet(c, "admin-1")

	require.NoError(t, h.AssignBot(c))
	require.Len(t, grantSvc.upserts, 1)
	assert.True(t, grantSvc.upserts[0].IsAdmin)
}

func TestAssignBotValidatesBody(t *testing.T) {
	grantSvc := &fakeGrants{admins: map[string]bool{"admin-1": true}}
	h := NewAdminHandler(slog.Default(), &fakeCreds{}, grantSvc, &fakeValidatorGateway{})

	e := newTestEcho()
	c, _ := newTestContext(t, e, http.MethodPost, "/admin/assign-bot", `{"wallet":"wallet-1"}`)
	asWallet(c, "admin-1")

	err := h.AssignBot(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestValidateBot(t *testing.T) {
	grantSvc := &fakeGrants{admins: map[string]bool{"admin-1": true}}
	h := NewAdminHandler(slog.Default(), &fakeCreds{}, grantSvc, &fakeValidatorGateway{botName: "nether-bot"})

	e := newTestEcho()
	c, rec := newTestContext(t, e, http.MethodPost, "/admin/validate-bot", `{"token":"bot-token"}`)
	asWallet(c, "admin-1")

	require.NoError(t, h.ValidateBot(c))
	assert.JSONEq(t, `{"valid": true, "botName": "nether-bot"}`, rec.Body.String())
}

func TestValidateBotBadToken(t *testing.T) {
	grantSvc := &fakeGrants{admins: map[string]bool{"admin-1": true}}
	h := NewAdminHandler(slog.Default(), &fakeCreds{}, grantSvc, &fakeValidatorGateway{err: gateway.ErrConnection})

	e := newTestEcho()
	c, rec := newTestContext(t, e, http.MethodPost, "/admin/validate-bot", `{"token":"bad-token"}`)
	asWallet(c, "admin-1")

	// A token that cannot authenticate is a negative result, not an error.
	require.NoError(t, h.ValidateBot(c))
	assert.JSONEq(t, `{"valid": false}`, rec.Body.String())
}

func TestValidateBotUpstreamRejection(t *testing.T) {
	grantSvc := &fakeGrants{admins: map[string]bool{"admin-1": true}}
	h := NewAdminHandler(slog.Default(), &fakeCreds{}, grantSvc, &fakeValidatorGateway{err: errors.New("401 unauthorized")})

	e := newTestEcho()
	c, rec := newTestContext(t, e, http.MethodPost, "/admin/validate-bot", `{"token":"bad-token"}`)
	asWallet(c, "admin-1")

	require.NoError(t, h.ValidateBot(c))
	assert.JSONEq(t, `{"valid": false}`, rec.Body.String())
}
