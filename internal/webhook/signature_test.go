package webhook

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

func TestVerifySignature_TicketTailor(t *testing.T) {
	p := &model.Provider{Type: model.ProviderTicketTailor, WebhookSecret: "shh"}
	body := []byte(`{"event":"ORDER.CREATED"}`)
	now := time.Unix(1748804400, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	good := "t=" + ts + ",v1=" + Sign([]byte("shh"), append([]byte(ts), body...))

	h := http.Header{}
	h.Set(HeaderTicketTailorSignature, good)
	assert.NoError(t, VerifySignature(p, h, body, now))
	assert.NoError(t, VerifySignature(p, h, body, now.Add(4*time.Minute)))

	assert.ErrorIs(t, VerifySignature(p, h, body, now.Add(10*time.Minute)), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(p, h, []byte(`{"event":"ORDER.REFUNDED"}`), now), ErrInvalidSignature)

	h.Set(HeaderTicketTailorSignature, "garbage")
	assert.ErrorIs(t, VerifySignature(p, h, body, now), ErrInvalidSignature)
}

func TestVerifySignature_Generic(t *testing.T) {
	p := &model.Provider{Type: model.ProviderEventbrite, WebhookSecret: "k"}
	body := []byte(`{"api_url":"x"}`)

	h := http.Header{}
	assert.ErrorIs(t, VerifySignature(p, h, body, time.Now()), ErrInvalidSignature)
	h.Set(HeaderSignature, "sha256="+Sign([]byte("k"), body))
	assert.NoError(t, VerifySignature(p, h, body, time.Now()))
}

func TestVerifySignature_NoSecret(t *testing.T) {
	p := &model.Provider{Type: model.ProviderEventbrite}
	assert.NoError(t, VerifySignature(p, http.Header{}, []byte("{}"), time.Now()))
}
