package auth

import (
	"github.com/vivianlazaras/verdant/internal/curve"
	opaque "github.com/vivianlazaras/verdant"
)

// ToWireCredentialRequest encodes an opaque.CredentialRequest to its
// JSON-safe form.
func ToWireCredentialRequest(r *opaque.CredentialRequest) *CredentialRequestWire {
	return &CredentialRequestWire{
		BlindedMessage: r.BlindedMessage.Encode(),
		ClientNonce:    r.ClientNonce,
		ClientKeyshare: r.ClientKeyshare.Encode(),
	}
}

// FromWireCredentialRequest decodes a wire credential request against g.
func FromWireCredentialRequest(g curve.Group, w *CredentialRequestWire) (*opaque.CredentialRequest, error) {
	blinded, err := curve.DecodeElement(g, w.BlindedMessage)
	if err != nil {
		return nil, err
	}

	keyshare, err := curve.DecodeElement(g, w.ClientKeyshare)
	if err != nil {
		return nil, err
	}

	return &opaque.CredentialRequest{
		BlindedMessage: blinded,
		ClientNonce:    w.ClientNonce,
		ClientKeyshare: keyshare,
	}, nil
}

// ToWireCredentialResponse encodes an opaque.CredentialResponse.
func ToWireCredentialResponse(r *opaque.CredentialResponse) *CredentialResponseWire {
	return &CredentialResponseWire{
		EvaluatedMessage: r.EvaluatedMessage.Encode(),
		EnvelopeNonce:    r.Envelope.Nonce,
		EnvelopeAuthTag:  r.Envelope.AuthTag,
		ServerNonce:      r.ServerNonce,
		ServerKeyshare:   r.ServerKeyshare.Encode(),
		ServerMac:        r.ServerMac,
	}
}

// FromWireCredentialResponse decodes a wire credential response against g.
func FromWireCredentialResponse(g curve.Group, w *CredentialResponseWire) (*opaque.CredentialResponse, error) {
	evaluated, err := curve.DecodeElement(g, w.EvaluatedMessage)
	if err != nil {
		return nil, err
	}

	keyshare, err := curve.DecodeElement(g, w.ServerKeyshare)
	if err != nil {
		return nil, err
	}

	return &opaque.CredentialResponse{
		EvaluatedMessage: evaluated,
		Envelope:         &opaque.Envelope{Nonce: w.EnvelopeNonce, AuthTag: w.EnvelopeAuthTag},
		ServerNonce:      w.ServerNonce,
		ServerKeyshare:   keyshare,
		ServerMac:        w.ServerMac,
	}, nil
}

// ToWireCredentialFinalization encodes an opaque.CredentialFinalization.
func ToWireCredentialFinalization(f *opaque.CredentialFinalization) *CredentialFinalizationWire {
	return &CredentialFinalizationWire{ClientMac: f.ClientMac}
}

// FromWireCredentialFinalization decodes a wire credential finalization.
func FromWireCredentialFinalization(w *CredentialFinalizationWire) *opaque.CredentialFinalization {
	return &opaque.CredentialFinalization{ClientMac: w.ClientMac}
}
