package transcriber

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindLocal Kind = iota
	KindCloud
)

func (k Kind) String() string {
	if k == KindCloud {
		return "cloud"
	}
	return "local"
}

type ProviderType string

const (
	ProviderParakeet     ProviderType = "parakeet"
	ProviderDeepgram     ProviderType = "deepgram"
	ProviderGoogleSpeech ProviderType = "google"
)

var providerTypes = []ProviderType{ProviderParakeet, ProviderDeepgram, ProviderGoogleSpeech}

func ProviderTypes() []ProviderType {
	out := make([]ProviderType, len(providerTypes))
	copy(out, providerTypes)
	return out
}

func ParseProviderType(s string) (ProviderType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, t := range providerTypes {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

func (t ProviderType) String() string {
	return string(t)
}

// Kind reports whether the provider runs on this host or is a remote API.
func (t ProviderType) Kind() Kind {
	switch t {
	case ProviderDeepgram, ProviderGoogleSpeech:
		return KindCloud
	default:
		return KindLocal
	}
}
