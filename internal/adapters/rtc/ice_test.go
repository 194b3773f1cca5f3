package rtc_test

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/relay/internal/adapters/rtc"
	"github.com/dkeye/relay/internal/config"
)

func TestWebRTCConfig_DefaultsToPublicSTUN(t *testing.T) {
	wc := rtc.WebRTCConfig(&config.Config{})
	require.Len(t, wc.ICEServers, 1)
	assert.Equal(t, []string{rtc.DefaultSTUN}, wc.ICEServers[0].URLs)
	assert.NoError(t, rtc.Validate(wc))
}

func TestWebRTCConfig_CarriesTURNCredentials(t *testing.T) {
	wc := rtc.WebRTCConfig(&config.Config{ICEServers: []config.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: "u", Credential: "p"},
	}})
	require.NoError(t, rtc.Validate(wc))

	assert.Equal(t, []rtc.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: "u", Credential: "p"},
	}, rtc.Browser(wc))
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]webrtc.ICEServer{
		"bad scheme":          {URLs: []string{"http://example.com"}},
		"turn without secret": {URLs: []string{"turn:turn.example.com:3478"}},
	}
	for name, srv := range cases {
		t.Run(name, func(t *testing.T) {
			err := rtc.Validate(webrtc.Configuration{ICEServers: []webrtc.ICEServer{srv}})
			assert.Error(t, err)
		})
	}
}
