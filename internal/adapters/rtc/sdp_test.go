package rtc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const offerWithActpass = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=setup:actpass\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=setup:actpass\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:1\r\n" +
	"a=setup:passive\r\n"

const offerWithoutSetup = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n"

func TestForceActiveRoleRewritesEveryLine(t *testing.T) {
	out, err := forceActiveRole(offerWithActpass)
	require.NoError(t, err)

	assert.NotContains(t, out, "setup:actpass")
	assert.NotContains(t, out, "setup:passive")
	assert.Equal(t, 3, strings.Count(out, "a=setup:active"))
}

func TestForceActiveRoleAddsMissingMediaAttribute(t *testing.T) {
	out, err := forceActiveRole(offerWithoutSetup)
	require.NoError(t, err)

	assert.Contains(t, out, "a=setup:active")
}

func TestForceActiveRolePreservesMediaSections(t *testing.T) {
	out, err := forceActiveRole(offerWithActpass)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "m="))
	assert.Contains(t, out, "m=audio 9 UDP/TLS/RTP/SAVPF 111")
	assert.Contains(t, out, "m=video 9 UDP/TLS/RTP/SAVPF 96")
}

func TestForceActiveRoleRejectsGarbage(t *testing.T) {
	_, err := forceActiveRole("this is not sdp")
	require.Error(t, err)
}
