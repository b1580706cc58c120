package security

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpIssuer is the name authenticator apps show for provisioned secrets.
const totpIssuer = "Scorpion Security Hub"

// totpSkew allows codes from adjacent time steps so small clock drift does
// not lock users out.
const totpSkew = 2

// TwoFactorKey is the one-time provisioning payload returned when a second
// factor is enrolled. The secret is persisted but the QR payload is not
// retrievable later.
type TwoFactorKey struct {
	Secret     string
	OtpauthURL string
	QRCode     string
}

// GenerateTwoFactorKey creates a TOTP secret and a scannable QR data-URL for
// the given account.
func GenerateTwoFactorKey(username string) (*TwoFactorKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: username,
	})
	if err != nil {
		return nil, err
	}

	out := &TwoFactorKey{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
	}
	if img, errImage := key.Image(220, 220); errImage == nil {
		var buf bytes.Buffer
		if errEncode := png.Encode(&buf, img); errEncode == nil {
			out.QRCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	return out, nil
}

// VerifyTOTP checks a 6-digit code against a stored secret, allowing a
// clock-skew window of ±2 time steps.
func VerifyTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
