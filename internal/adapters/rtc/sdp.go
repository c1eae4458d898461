package rtc

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

const setupAttr = "setup"

// forceActiveRole rewrites every a=setup attribute to "active" before the
// description is submitted. The remote media plane only accepts the active
// DTLS role from joining clients.
func forceActiveRole(raw string) (string, error) {
	var desc sdp.SessionDescription
	if err := desc.UnmarshalString(raw); err != nil {
		return "", fmt.Errorf("parse local description: %w", err)
	}

	for i := range desc.Attributes {
		if desc.Attributes[i].Key == setupAttr {
			desc.Attributes[i].Value = "active"
		}
	}
	for _, m := range desc.MediaDescriptions {
		rewritten := false
		for i := range m.Attributes {
			if m.Attributes[i].Key == setupAttr {
				m.Attributes[i].Value = "active"
				rewritten = true
			}
		}
		if !rewritten {
			m.Attributes = append(m.Attributes, sdp.Attribute{Key: setupAttr, Value: "active"})
		}
	}

	out, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal rewritten description: %w", err)
	}
	return string(out), nil
}
