package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientAndServerTagsAreDomainSeparated(t *testing.T) {
	req, resp := sampleExchange()
	transcript := ComputeTranscript(req, resp)
	confirmKey := DeriveConfirmationKey([]byte("a shared session key"))

	clientTag := ClientTag(confirmKey, transcript)
	serverTag := ServerTag(confirmKey, transcript)

	assert.NotEqual(t, clientTag, serverTag, "client and server tags must never collide even over an identical transcript")
	assert.True(t, VerifyClientTag(confirmKey, transcript, clientTag))
	assert.True(t, VerifyServerTag(confirmKey, transcript, serverTag))
	assert.False(t, VerifyClientTag(confirmKey, transcript, serverTag), "a server tag must never verify as a client tag")
}

func TestVerifyTagRejectsWrongConfirmKey(t *testing.T) {
	req, resp := sampleExchange()
	transcript := ComputeTranscript(req, resp)

	keyA := DeriveConfirmationKey([]byte("session key A"))
	keyB := DeriveConfirmationKey([]byte("session key B"))

	tag := ClientTag(keyA, transcript)

	assert.False(t, VerifyClientTag(keyB, transcript, tag))
}

func TestVerifyTagRejectsMismatchedTranscript(t *testing.T) {
	req, resp := sampleExchange()
	confirmKey := DeriveConfirmationKey([]byte("a shared session key"))

	original := ComputeTranscript(req, resp)
	tag := ClientTag(confirmKey, original)

	req.Username = "mallory"
	tampered := ComputeTranscript(req, resp)

	assert.False(t, VerifyClientTag(confirmKey, tampered, tag))
}
