package objectstore

import (
	"testing"

	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/stretchr/testify/require"
)

func TestRemoteAuthMethodNone(t *testing.T) {
	auth := &RemoteAuth{Type: AuthTypeNone}
	method, err := auth.Method()
	require.NoError(t, err)
	require.Nil(t, method)
}

func TestRemoteAuthMethodNilReceiver(t *testing.T) {
	var auth *RemoteAuth
	method, err := auth.Method()
	require.NoError(t, err)
	require.Nil(t, method)
}

func TestRemoteAuthMethodToken(t *testing.T) {
	auth := &RemoteAuth{Type: AuthTypeToken, Token: "abc123"}
	method, err := auth.Method()
	require.NoError(t, err)

	basic, ok := method.(*http.BasicAuth)
	require.True(t, ok)
	require.Equal(t, "git", basic.Username)
	require.Equal(t, "abc123", basic.Password)
}

func TestRemoteAuthMethodBasic(t *testing.T) {
	auth := &RemoteAuth{Type: AuthTypeBasic, Username: "alice", Password: "secret"}
	method, err := auth.Method()
	require.NoError(t, err)

	basic, ok := method.(*http.BasicAuth)
	require.True(t, ok)
	require.Equal(t, "alice", basic.Username)
	require.Equal(t, "secret", basic.Password)
}

func TestRemoteAuthMethodSSHMissingKeyFails(t *testing.T) {
	auth := &RemoteAuth{Type: AuthTypeSSH, KeyPath: "/nonexistent/id_rsa"}
	_, err := auth.Method()
	require.Error(t, err)
}

func TestRemoteAuthMethodUnknownType(t *testing.T) {
	auth := &RemoteAuth{Type: "bogus"}
	_, err := auth.Method()
	require.Error(t, err)
}
