// Package rtc turns configured ICE servers into the configuration browsers
// use for their RTCPeerConnection. The relay never opens media itself.
package rtc

import (
	"fmt"

	"github.com/dkeye/relay/internal/config"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const DefaultSTUN = "stun:stun.l.google.com:19302"

// ICEServer is the RTCIceServer dictionary as browsers expect it.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{DefaultSTUN},
			},
		},
	}
}

// WebRTCConfig builds the configuration from cfg, falling back to the
// public STUN server when none are configured.
func WebRTCConfig(cfg *config.Config) webrtc.Configuration {
	if cfg == nil || len(cfg.ICEServers) == 0 {
		return DefaultWebRTCConfig()
	}
	out := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(cfg.ICEServers))}
	for _, s := range cfg.ICEServers {
		srv := webrtc.ICEServer{URLs: append([]string(nil), s.URLs...), Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out.ICEServers = append(out.ICEServers, srv)
	}
	return out
}

// Validate lets pion parse every URL and check TURN credentials by building
// a throwaway peer connection.
func Validate(wc webrtc.Configuration) error {
	pc, err := webrtc.NewPeerConnection(wc)
	if err != nil {
		return fmt.Errorf("ice servers: %w", err)
	}
	if err := pc.Close(); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Msg("close probe peer connection")
	}
	return nil
}

// Browser converts wc to what GET /api/ice-servers returns.
func Browser(wc webrtc.Configuration) []ICEServer {
	out := make([]ICEServer, 0, len(wc.ICEServers))
	for _, s := range wc.ICEServers {
		srv := ICEServer{URLs: s.URLs, Username: s.Username}
		if cred, ok := s.Credential.(string); ok {
			srv.Credential = cred
		}
		out = append(out, srv)
	}
	return out
}
