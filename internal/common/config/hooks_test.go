package config

import (
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxifare/fareops/pkg/client/auth/identity"
)

type testSettings struct {
	AuthMethod   identity.Method
	PollInterval time.Duration
}

func decode(t *testing.T, input map[string]interface{}) (*testSettings, error) {
	out := &testSettings{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(AuthMethodHookFunc(), mapstructure.StringToTimeDurationHookFunc()),
		Result:     out,
	})
	require.NoError(t, err)
	return out, decoder.Decode(input)
}

func TestAuthMethodHookFunc(t *testing.T) {
	out, err := decode(t, map[string]interface{}{"authMethod": "ClientCredentials", "pollInterval": "5s"})
	require.NoError(t, err)
	assert.Equal(t, identity.MethodClientCredentials, out.AuthMethod)
	assert.Equal(t, 5*time.Second, out.PollInterval)
}

func TestAuthMethodHookFunc_Invalid(t *testing.T) {
	_, err := decode(t, map[string]interface{}{"authMethod": "kerberos"})
	assert.Error(t, err)
}
