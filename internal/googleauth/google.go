package googleauth

import (
	"context"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/pokazuha/backend/internal/logging"
)

// Identity is the profile carried by a verified Google ID token.
type Identity struct {
	GoogleID      string
	Email         string
	FirstName     string
	LastName      string
	Picture       string
	EmailVerified bool
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Resolver verifies Google-issued ID tokens against a configured client id.
type Resolver struct {
	clientID string
	timeout  time.Duration
	validate validateFunc
}

func New(clientID string) *Resolver {
	return &Resolver{
		clientID: clientID,
		timeout:  5 * time.Second,
		validate: idtoken.Validate,
	}
}

// ValidateIDToken returns the federated identity, or nil on any
// validation failure. Failures are logged; none are surfaced as errors.
func (r *Resolver) ValidateIDToken(ctx context.Context, raw string) *Identity {
	if raw == "" || r.clientID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := r.validate(ctx, raw, r.clientID)
	if err != nil {
		logging.FromContext(ctx).Warn("google_token_rejected", "error", err)
		return nil
	}

	return &Identity{
		GoogleID:      payload.Subject,
		Email:         claimString(payload, "email"),
		FirstName:     claimString(payload, "given_name"),
		LastName:      claimString(payload, "family_name"),
		Picture:       claimString(payload, "picture"),
		EmailVerified: claimBool(payload, "email_verified"),
	}
}

func claimString(p *idtoken.Payload, name string) string {
	if v, ok := p.Claims[name].(string); ok {
		return v
	}
	return ""
}

func claimBool(p *idtoken.Payload, name string) bool {
	switch v := p.Claims[name].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
