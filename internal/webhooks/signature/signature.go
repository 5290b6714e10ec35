package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

// Header names checked per provider.
const (
	HeaderPayPalTransmissionID   = "Paypal-Transmission-Id"
	HeaderPayPalTransmissionTime = "Paypal-Transmission-Time"
	HeaderPayPalTransmissionSig  = "Paypal-Transmission-Sig"
	HeaderSquareSignature        = "X-Square-Hmacsha256-Signature"
	HeaderMercadoPagoSignature   = "X-Signature"
	HeaderMercadoPagoRequestID   = "X-Request-Id"
	HeaderPaystackSignature      = "X-Paystack-Signature"
)

// Verifier authenticates a raw webhook request before any parsing happens.
// The signature covers exact bytes, so callers must pass the unmodified body.
type Verifier interface {
	Verify(r *http.Request, body []byte) error
}

func errMissingSignature(provider string) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, provider+" signature missing")
}

func errInvalidSignature(provider string) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid "+provider+" signature")
}

func errSecretUnconfigured(provider string) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, provider+" webhook secret not configured")
}

// PayPal verifies HMAC-SHA256 over "transmissionID|timestamp|body" with the
// configured webhook secret, base64-encoded in the transmission-sig header.
type PayPal struct {
	Secret          string
	AllowUnverified bool
}

func (v PayPal) Verify(r *http.Request, body []byte) error {
	if v.Secret == "" {
		if v.AllowUnverified {
			return nil
		}
		return errSecretUnconfigured("paypal")
	}

	transmissionID := r.Header.Get(HeaderPayPalTransmissionID)
	timestamp := r.Header.Get(HeaderPayPalTransmissionTime)
	sig := r.Header.Get(HeaderPayPalTransmissionSig)
	if transmissionID == "" || timestamp == "" || sig == "" {
		return errMissingSignature("paypal")
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(transmissionID))
	mac.Write([]byte("|"))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("|"))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errInvalidSignature("paypal")
	}
	return nil
}

// Square verifies base64 HMAC-SHA256 over the notification URL concatenated
// with the raw body, per Square's webhook subscription scheme.
type Square struct {
	Secret          string
	NotificationURL string
	AllowUnverified bool
}

func (v Square) Verify(r *http.Request, body []byte) error {
	if v.Secret == "" {
		if v.AllowUnverified {
			return nil
		}
		return errSecretUnconfigured("square")
	}

	sig := r.Header.Get(HeaderSquareSignature)
	if sig == "" {
		return errMissingSignature("square")
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(v.NotificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errInvalidSignature("square")
	}
	return nil
}

// MercadoPago verifies the x-signature header ("ts=...,v1=...") as hex
// HMAC-SHA256 over the manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
// The data.id comes from the notification query string, not the body.
type MercadoPago struct {
	Secret          string
	AllowUnverified bool
}

func (v MercadoPago) Verify(r *http.Request, body []byte) error {
	if v.Secret == "" {
		if v.AllowUnverified {
			return nil
		}
		return errSecretUnconfigured("mercadopago")
	}

	header := r.Header.Get(HeaderMercadoPagoSignature)
	if header == "" {
		return errMissingSignature("mercadopago")
	}
	ts, v1 := parseMercadoPagoHeader(header)
	if ts == "" || v1 == "" {
		return errInvalidSignature("mercadopago")
	}

	dataID := r.URL.Query().Get("data.id")
	requestID := r.Header.Get(HeaderMercadoPagoRequestID)

	manifest := "id:" + dataID + ";request-id:" + requestID + ";ts:" + ts + ";"
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return errInvalidSignature("mercadopago")
	}
	return nil
}

func parseMercadoPagoHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1
}

// Paystack verifies hex HMAC-SHA512 over the raw body with the account
// secret key.
type Paystack struct {
	Secret          string
	AllowUnverified bool
}

func (v Paystack) Verify(r *http.Request, body []byte) error {
	if v.Secret == "" {
		if v.AllowUnverified {
			return nil
		}
		return errSecretUnconfigured("paystack")
	}

	sig := r.Header.Get(HeaderPaystackSignature)
	if sig == "" {
		return errMissingSignature("paystack")
	}

	expected := computeHex(sha512.New, v.Secret, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errInvalidSignature("paystack")
	}
	return nil
}

// Offline accepts every request. Offline confirmations carry no provider
// signature; the operator JWT middleware is the authenticity gate.
type Offline struct{}

func (Offline) Verify(*http.Request, []byte) error {
	return nil
}

func computeHex(newHash func() hash.Hash, secret string, body []byte) string {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
