package auth

import "time"

// Config selects how status API callers authenticate. Authentication is
// off when Provider is empty and no basic credentials are configured.
type Config struct {
	Provider string            `flag:"provider" desc:"auth provider to use (basic,jwt)" validate:"omitempty,oneof=basic jwt"`
	Basic    map[string]string `flag:"-" desc:"http basic auth username password pairs"`
	JWT      JWTConfig         `flag:"jwt" desc:"jwt auth settings"`
}

type JWTConfig struct {
	Algorithm string        `flag:"algorithm" desc:"jwt signing algorithm" default:"HS256"`
	Audience  []string      `flag:"audience" desc:"expected jwt audiences"`
	Issuer    string        `flag:"issuer" desc:"expected jwt issuer"`
	Key       string        `flag:"key" desc:"jwt verification key or shared secret"`
	KeyFile   string        `flag:"key-file" desc:"path to jwt verification key or shared secret"`
	ClockSkew time.Duration `flag:"clock-skew" desc:"clock skew tolerance when validating tokens" default:"30s"`
}
