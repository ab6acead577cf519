package access

import (
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestBroker_AppletOption(t *testing.T) {
	tb := setupBroker(t)
	tb.fakes.hosts = []AppletHost{
		{ID: "host-2", Name: "zeta", Accounts: []Account{{ID: "js-9", Username: "js9"}}},
		{ID: "host-1", Name: "alpha", Accounts: []Account{{ID: "js-1", Username: "js1"}, {ID: "js-2", Username: "js2"}}},
	}
	super := tb.rCtx("applet", RoleSuper)

	token := createToken(t, tb, CreateTokenRequest{AssetID: "web", Account: "root", Protocol: "http", ConnectMethod: "chrome"})

	_, err := tb.AppletOption(tb.rCtx("alice", RoleUser), token.ID)
	assert.Assert(t, errors.Is(err, ErrNotAuthorized))

	var accounts []string
	for i := 0; i < 3; i++ {
		option, err := tb.AppletOption(super, token.ID)
		assert.NilError(t, err)
		accounts = append(accounts, option.Account.ID)
	}
	assert.DeepEqual(t, accounts, []string{"js-1", "js-2", "js-9"})
	assert.Equal(t, tb.slots.held["js-1"], token.ID.String())

	_, err = tb.AppletOption(super, token.ID)
	assert.Assert(t, errors.Is(err, ErrAppletSlotUnavailable))

	released, err := tb.ReleaseAppletSlot(super, "js-2")
	assert.NilError(t, err)
	assert.Assert(t, released)

	option, err := tb.AppletOption(super, token.ID)
	assert.NilError(t, err)
	assert.Equal(t, option.Host.ID, "host-1")
	assert.Equal(t, option.Account.ID, "js-2")

	tb.advance(time.Hour)
	_, err = tb.AppletOption(super, token.ID)
	assert.Assert(t, errors.Is(err, ErrTokenExpired))
}

func TestBroker_ReleaseAppletSlot(t *testing.T) {
	tb := setupBroker(t)
	super := tb.rCtx("applet", RoleSuper)

	released, err := tb.ReleaseAppletSlot(super, "js-1")
	assert.NilError(t, err)
	assert.Assert(t, !released)

	tb.slots.held["js-1"] = "holder"
	released, err = tb.ReleaseAppletSlot(super, "js-1")
	assert.NilError(t, err)
	assert.Assert(t, released)

	_, err = tb.ReleaseAppletSlot(tb.rCtx("alice", RoleUser), "js-1")
	assert.Assert(t, errors.Is(err, ErrNotAuthorized))
}
