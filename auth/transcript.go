package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const transcriptVersionTag = "LOGIN_TRANSCRIPT_V1"

// Transcript is the deterministic byte string both sides hash into the
// confirmation tags: a fixed version tag followed by a length-prefixed
// encoding of the exact LoginRequest and LoginResponse that were exchanged.
// It deliberately does not use JSON — field ordering and whitespace in a
// JSON encoder are not guaranteed stable across versions or runtimes, and
// the confirmation tags must be computed over exactly the same bytes on
// both ends.
type Transcript struct {
	bytes []byte
}

func putBytes(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

// ComputeTranscript deterministically serializes request and response into
// a single transcript, matching original_source/auth/challenge.rs's
// compute_transcript (there: b"LOGIN_TRANSCRIPT_V1" + bincode(request) +
// bincode(response); here: the same version tag followed by an explicit,
// versioned binary encoding since Go has no bincode equivalent).
func ComputeTranscript(req *LoginRequest, resp *LoginResponse) *Transcript {
	var buf bytes.Buffer
	buf.WriteString(transcriptVersionTag)

	putString(&buf, req.Username)
	if req.Credential != nil {
		putBytes(&buf, req.Credential.BlindedMessage)
		putBytes(&buf, req.Credential.ClientNonce)
		putBytes(&buf, req.Credential.ClientKeyshare)
	}

	putString(&buf, string(resp.Kind))
	putString(&buf, resp.OTPMessage)
	idBytes, _ := resp.SessionID.MarshalBinary()
	putBytes(&buf, idBytes)
	if resp.Credential != nil {
		putBytes(&buf, resp.Credential.EvaluatedMessage)
		putBytes(&buf, resp.Credential.EnvelopeNonce)
		putBytes(&buf, resp.Credential.EnvelopeAuthTag)
		putBytes(&buf, resp.Credential.ServerNonce)
		putBytes(&buf, resp.Credential.ServerKeyshare)
		putBytes(&buf, resp.Credential.ServerMac)
	}

	return &Transcript{bytes: buf.Bytes()}
}

// Bytes returns the raw transcript bytes.
func (t *Transcript) Bytes() []byte {
	return t.bytes
}

// String base64-encodes the transcript, for logging or embedding in a
// larger envelope that itself is textual.
func (t *Transcript) String() string {
	return base64.StdEncoding.EncodeToString(t.bytes)
}

// ParseTranscript reverses String, for tests asserting the roundtrip holds.
func ParseTranscript(s string) (*Transcript, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid transcript encoding: %w", err)
	}

	return &Transcript{bytes: b}, nil
}
