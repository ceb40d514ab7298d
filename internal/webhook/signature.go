package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// Signature headers.
const (
	HeaderTicketTailorSignature = "Tickettailor-Webhook-Signature"
	HeaderSignature             = "X-Webhook-Signature"
)

// ErrInvalidSignature is returned for a missing, malformed, stale or
// mismatched signature.
var ErrInvalidSignature = errors.New("webhook: invalid signature")

// SignatureTolerance bounds the age of a timestamped signature.
const SignatureTolerance = 5 * time.Minute

// VerifySignature checks the delivery signature against the provider's
// webhook secret.  Providers without a secret are not verified.
//
// Tickettailor signs "t=<unix>,v1=<hex hmac-sha256(secret, t+body)>".
// Other providers are expected to send hex hmac-sha256(secret, body) in
// X-Webhook-Signature, typically added by a signing relay.
func VerifySignature(p *model.Provider, h http.Header, body []byte, now time.Time) error {
	if p.WebhookSecret == "" {
		return nil
	}
	secret := []byte(p.WebhookSecret)

	if p.Type == model.ProviderTicketTailor {
		ts, sig, ok := parseTimestamped(h.Get(HeaderTicketTailorSignature))
		if !ok {
			return ErrInvalidSignature
		}
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		if d := now.Sub(time.Unix(unix, 0)); d > SignatureTolerance || d < -SignatureTolerance {
			return ErrInvalidSignature
		}
		return compare(sig, Sign(secret, append([]byte(ts), body...)))
	}
	return compare(strings.TrimPrefix(h.Get(HeaderSignature), "sha256="), Sign(secret, body))
}

// Sign returns hex(hmac-sha256(secret, msg)).
func Sign(secret, msg []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func compare(got, want string) error {
	if got == "" || !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}

func parseTimestamped(v string) (ts, sig string, ok bool) {
	for _, part := range strings.Split(v, ",") {
		k, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			sig = val
		}
	}
	return ts, sig, ts != "" && sig != ""
}
