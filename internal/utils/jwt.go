package utils // package utils mints the JWTs operators use against the operator API

import (
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/rotisserie/eris"
)

// Operator roles carried in the "role" claim.
const (
    RoleOperator = "OPERATOR"
    RoleAdmin    = "ADMIN"
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
    Token string    `json:"token"`
    Exp   time.Time `json:"expires_at"`
}

// NewAccessToken builds and signs an HS256 JWT for an operator.  The
// subject is the operator's name (an email or service account), role is
// one of the Role constants and ttl bounds the token lifetime.
func NewAccessToken(secret, subject, role string, ttl time.Duration) (AccessToken, error) {
    if secret == "" {
        return AccessToken{}, eris.New("utils: empty jwt secret")
    }
    if subject == "" {
        return AccessToken{}, eris.New("utils: empty subject")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  subject,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, eris.Wrap(err, "utils: sign token")
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates raw against secret and returns its subject
// and role.
func ParseAccessToken(secret, raw string) (subject, role string, err error) {
    tok, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil {
        return "", "", eris.Wrap(err, "utils: parse token")
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return "", "", eris.New("utils: unexpected claims type")
    }
    subject, _ = claims["sub"].(string)
    role, _ = claims["role"].(string)
    if subject == "" {
        return "", "", eris.New("utils: token has no subject")
    }
    return subject, role, nil
}
