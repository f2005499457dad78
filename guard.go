package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-auth-api/middleware/jwtware"
)

// NewRouteGuard builds the bearer-token middleware from the auth
// configuration. Handlers behind the guard can read the validated
// claims with ClaimsFromContext.
func NewRouteGuard(cfg Config, tokens TokenService) fiber.Handler {
	return jwtware.New(jwtware.Config{
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		AuthScheme:     cfg.GetAuthScheme(),
		TokenValidator: tokenValidatorAdapter{tokens: tokens},
	})
}

// tokenValidatorAdapter bridges TokenService into the middleware's
// validator interface.
type tokenValidatorAdapter struct {
	tokens TokenService
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
