package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleExchange() (*LoginRequest, *LoginResponse) {
	req := &LoginRequest{
		Username: "alice",
		Credential: &CredentialRequestWire{
			BlindedMessage: []byte("blinded"),
			ClientNonce:    []byte("client-nonce"),
			ClientKeyshare: []byte("client-keyshare"),
		},
	}

	resp := &LoginResponse{
		Kind:      ResponsePAKE,
		SessionID: uuid.New(),
		Credential: &CredentialResponseWire{
			EvaluatedMessage: []byte("evaluated"),
			EnvelopeNonce:    []byte("envelope-nonce"),
			EnvelopeAuthTag:  []byte("envelope-tag"),
			ServerNonce:      []byte("server-nonce"),
			ServerKeyshare:   []byte("server-keyshare"),
			ServerMac:        []byte("server-mac"),
		},
	}

	return req, resp
}

func TestComputeTranscriptIsDeterministic(t *testing.T) {
	req, resp := sampleExchange()

	a := ComputeTranscript(req, resp)
	b := ComputeTranscript(req, resp)

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestComputeTranscriptDivergesOnUsernameChange(t *testing.T) {
	req, resp := sampleExchange()
	base := ComputeTranscript(req, resp)

	reqCopy, respCopy := sampleExchange()
	respCopy.SessionID = resp.SessionID
	reqCopy.Username = "mallory"
	divergent := ComputeTranscript(reqCopy, respCopy)

	assert.NotEqual(t, base.Bytes(), divergent.Bytes())
}

func TestTranscriptStringRoundTrips(t *testing.T) {
	req, resp := sampleExchange()
	t1 := ComputeTranscript(req, resp)

	parsed, err := ParseTranscript(t1.String())
	require.NoError(t, err)

	assert.Equal(t, t1.Bytes(), parsed.Bytes())
}

func TestParseTranscriptRejectsInvalidEncoding(t *testing.T) {
	_, err := ParseTranscript("not valid base64 !!!")
	assert.Error(t, err)
}
