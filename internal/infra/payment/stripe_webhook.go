package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"membership-platform/internal/domain"
)

// VerifyWebhookSignature checks the "t=...,v1=..." header against an
// HMAC-SHA256 of "<timestamp>.<body>" and rejects stale timestamps.
// It must be called before the payload is parsed or acted on.
func (g *StripeGateway) VerifyWebhookSignature(rawBody []byte, sigHeader string) error {
	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return err
	}

	if g.tolerance > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > g.tolerance || age < -g.tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrSignatureInvalid)
		}
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	for _, s := range sigs {
		got, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", domain.ErrSignatureInvalid)
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", domain.ErrSignatureInvalid)
	}
	var ts int64 = -1
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: malformed timestamp", domain.ErrSignatureInvalid)
			}
			ts = v
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts < 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", domain.ErrSignatureInvalid)
	}
	return ts, sigs, nil
}
