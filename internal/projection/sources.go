package projection

import "strings"

// SourceRef is one selectable source: the wire identifiers a label maps to.
type SourceRef struct {
	Source        string
	SourceAccount string
	AccountID     string
}

// LabeledSource pairs a human-facing label with its wire identifiers.
type LabeledSource struct {
	Label string
	SourceRef
}

// DefaultSources is the built-in label table for the physical inputs every
// soundbar exposes. Network providers are discovered at runtime from the
// device's source list.
func DefaultSources() []LabeledSource {
	return []LabeledSource{
		{Label: "TV", SourceRef: SourceRef{Source: "PRODUCT", SourceAccount: "TV"}},
		{Label: "Optical", SourceRef: SourceRef{Source: "PRODUCT", SourceAccount: "AUX_DIGITAL"}},
		{Label: "Cinch", SourceRef: SourceRef{Source: "PRODUCT", SourceAccount: "AUX_ANALOG"}},
	}
}

// multiAccountProviders are providers where one speaker can hold several
// accounts, so selection must key on the account id instead of the
// source/account pair.
var multiAccountProviders = map[string]bool{
	"SPOTIFY": true,
	"AMAZON":  true,
	"DEEZER":  true,
}

// placeholderAccounts are the firmware's stand-in account names for
// provider slots that were never signed in. They are not selectable.
var placeholderAccounts = map[string]bool{
	"AlexaUserName":   true,
	"TuneInUserName":  true,
	"SpotifyConnectUserName": true,
}

// capitalize turns a raw wire identifier like "PRODUCT" into "Product".
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
