package social

import "context"

// ExternalIdentity is what a provider tells us about the person who
// completed the consent screen.
type ExternalIdentity struct {
	Provider      string
	ExternalID    string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

// Provider exchanges an authorization code for a verified identity.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}
