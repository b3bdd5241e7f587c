package deluge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"", true},
		{"garbage", true},
		{"1.3.0.dev0", true},
		{"2.1.1", true},
		{"1.3", true},
		{"1.3.0", true},
		{"1.3.15", true},
		{" 1.3.15\n", true},
		{"2.0.3-2-201906121747-ubuntu18.04.1", true},
		{"1.2.3", false},
		{"1.3.0rc1", false},
		{"1.3.0-dev", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, CapabilitiesFor(tt.version).CreatesMoveDirs)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	rpcErr := &RPCError{Method: "core.queue_top", Code: 2, Message: "bad id"}
	assert.Equal(t, "deluge core.queue_top failed (code 2): bad id", rpcErr.Error())

	netErr := &NetworkError{Operation: "auth.login", StatusCode: 502, Message: "bad gateway"}
	assert.Equal(t, "network error during auth.login (HTTP 502): bad gateway", netErr.Error())

	inner := errors.New("dial tcp: refused")
	wrapped := &NetworkError{Operation: "auth.login", Message: inner.Error(), Err: inner}
	assert.ErrorIs(t, wrapped, inner)

	authErr := &AuthenticationError{Operation: "auth.login", Err: netErr}
	assert.Equal(t, "authentication failed during auth.login", authErr.Error())
	assert.ErrorIs(t, authErr, netErr)
}
