// Package rtc exposes the ICE bootstrap the browser side needs to build
// its peer connections. The server never terminates media itself; audio
// flows peer to peer and only the signaling passes through the relay.
package rtc

import "github.com/pion/webrtc/v4"

const defaultSTUN = "stun:stun.l.google.com:19302"

// Configuration builds the webrtc.Configuration handed to clients so both
// ends of a call negotiate against the same ICE servers.
func Configuration(stunURLs []string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		stunURLs = []string{defaultSTUN}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunURLs},
		},
	}
}
