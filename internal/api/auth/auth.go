package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityKey is the gin context key holding the caller's Identity.
const IdentityKey = "auth.identity"

type Identity struct {
	Subject string
	Claims  jwt.MapClaims
}

// Error is a rejected request. Challenge is sent as WWW-Authenticate.
type Error struct {
	Status    int
	Message   string
	Challenge string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, *Error)
}

// New returns the Authenticator described by config, or nil when
// authentication is disabled.
func New(config *Config) (Authenticator, error) {
	if config == nil {
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(config.Provider))
	if provider == "" && len(config.Basic) > 0 {
		provider = "basic"
	}

	switch provider {
	case "":
		return nil, nil
	case "basic":
		a, err := newBasic(config.Basic)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "jwt":
		a, err := newJWT(&config.JWT)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", config.Provider)
	}
}

// Middleware rejects requests the authenticator does not accept. A nil
// authenticator lets everything through.
func Middleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}

		identity, err := a.Authenticate(c.Request)
		if err != nil {
			if err.Challenge != "" {
				c.Header("WWW-Authenticate", err.Challenge)
			}
			c.AbortWithStatusJSON(err.Status, gin.H{"error": err.Message})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

type basic struct {
	credentials map[string]string
}

func newBasic(credentials map[string]string) (*basic, error) {
	users := map[string]string{}
	for user, pass := range credentials {
		if user = strings.TrimSpace(user); user != "" {
			users[user] = pass
		}
	}
	if len(users) == 0 {
		return nil, errors.New("basic auth provider requires credentials")
	}
	return &basic{credentials: users}, nil
}

func (a *basic) Authenticate(r *http.Request) (*Identity, *Error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, basicError(errors.New("missing basic auth header"))
	}
	if expected, exists := a.credentials[user]; !exists || expected != pass {
		return nil, basicError(errors.New("invalid credentials"))
	}
	return &Identity{Subject: user}, nil
}

func basicError(err error) *Error {
	return &Error{
		Status:    http.StatusUnauthorized,
		Message:   "unauthorized",
		Challenge: `Basic realm="plotwatch"`,
		Err:       err,
	}
}

type bearer struct {
	key    any
	parser *jwt.Parser
}

func newJWT(config *JWTConfig) (*bearer, error) {
	algorithm := config.Algorithm
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown jwt signing algorithm %q", algorithm)
	}

	material := []byte(config.Key)
	if config.KeyFile != "" {
		data, err := os.ReadFile(config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt key file: %w", err)
		}
		material = data
	}
	if len(material) == 0 {
		return nil, errors.New("jwt key or key-file must be provided")
	}

	key, err := verificationKey(method, material)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{method.Alg()})}
	if config.ClockSkew > 0 {
		opts = append(opts, jwt.WithLeeway(config.ClockSkew))
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if len(config.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(config.Audience...))
	}

	return &bearer{key: key, parser: jwt.NewParser(opts...)}, nil
}

func verificationKey(method jwt.SigningMethod, material []byte) (any, error) {
	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		return material, nil
	case *jwt.SigningMethodRSA:
		return jwt.ParseRSAPublicKeyFromPEM(material)
	case *jwt.SigningMethodECDSA:
		return jwt.ParseECPublicKeyFromPEM(material)
	case *jwt.SigningMethodEd25519:
		return jwt.ParseEdPublicKeyFromPEM(material)
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", method.Alg())
	}
}

func (a *bearer) Authenticate(r *http.Request) (*Identity, *Error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, bearerError(errors.New("expected bearer token"))
	}

	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	}); err != nil {
		return nil, bearerError(err)
	}

	subject, _ := claims.GetSubject()
	return &Identity{Subject: subject, Claims: claims}, nil
}

func bearerError(err error) *Error {
	return &Error{
		Status:    http.StatusUnauthorized,
		Message:   "invalid token",
		Challenge: "Bearer",
		Err:       err,
	}
}
