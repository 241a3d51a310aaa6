package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"umari-core/internal/logger"

	"go.uber.org/zap"
)

const (
	stripeBaseURL = "https://api.stripe.com"

	// Signed webhook timestamps older than this are rejected to blunt
	// replay of captured payloads.
	signatureTolerance = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type stripeGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	now           func() time.Time
}

// ----------------- Constructor -----------------

func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}
	if webhookSecret == "" {
		logger.L().Warn("Stripe webhook secret is empty, signature checks will fail")
	}

	return &stripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       stripeBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

// ----------------- Refunds -----------------

func (s *stripeGateway) RefundPartial(ctx context.Context, paymentIntentID string, amountMinor int64, idempotencyKey string) (*RefundConfirmation, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	form.Set("amount", strconv.FormatInt(amountMinor, 10))

	return s.createRefund(ctx, "refund_partial", form, idempotencyKey)
}

func (s *stripeGateway) RefundFull(ctx context.Context, paymentIntentID string, idempotencyKey string) (*RefundConfirmation, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)

	return s.createRefund(ctx, "refund_full", form, idempotencyKey)
}

func (s *stripeGateway) createRefund(ctx context.Context, op string, form url.Values, idempotencyKey string) (*RefundConfirmation, error) {
	log := logger.L().With(
		zap.String("op", op),
		zap.String("payment_intent", form.Get("payment_intent")),
		zap.String("idempotency_key", idempotencyKey),
	)

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/refunds", strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, &GatewayError{Op: op, IdempotencyKey: idempotencyKey, Err: err}
	}

	req.SetBasicAuth(s.secretKey, "")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Idempotency-Key", idempotencyKey)

	log.Info("Sending refund request to Stripe")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Could have been sent and lost on the way back; the caller must
		// retry with the same idempotency key, never a fresh refund.
		log.Error("Stripe request failed", zap.Error(err))
		return nil, &GatewayError{Op: op, IdempotencyKey: idempotencyKey, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, &GatewayError{Op: op, IdempotencyKey: idempotencyKey, Err: err}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Error("Stripe returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, &GatewayError{
			Op:             op,
			IdempotencyKey: idempotencyKey,
			Err:            fmt.Errorf("stripe error: %s", string(bodyBytes)),
		}
	}

	var res struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("Failed decoding Stripe response", zap.Error(err))
		return nil, &GatewayError{Op: op, IdempotencyKey: idempotencyKey, Err: err}
	}

	log.Info("Stripe refund created",
		zap.String("refund_id", res.ID),
		zap.Int64("amount", res.Amount),
		zap.String("status", res.Status),
	)

	return &RefundConfirmation{
		RefundID: res.ID,
		Amount:   res.Amount,
		Status:   res.Status,
	}, nil
}

// ----------------- Webhook verification -----------------

// VerifyWebhook checks the `t=<unix>,v1=<hex>` signature header: the HMAC is
// SHA-256 over "<timestamp>.<payload>" keyed with the endpoint secret.
func (s *stripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	ts, sigs, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	if s.now().Sub(time.Unix(ts, 0)) > signatureTolerance {
		return nil, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID            string `json:"id"`
				Object        string `json:"object"`
				PaymentIntent string `json:"payment_intent"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	// payment_intent.* events carry the intent as the object itself;
	// charge.* events reference it on the charge.
	paymentIntentID := raw.Data.Object.PaymentIntent
	if paymentIntentID == "" && raw.Data.Object.Object == "payment_intent" {
		paymentIntentID = raw.Data.Object.ID
	}

	return &Event{
		ID:              raw.ID,
		Type:            EventType(raw.Type),
		PaymentIntentID: paymentIntentID,
	}, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		ts   int64
		sigs []string
	)

	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, err
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}

	if ts == 0 || len(sigs) == 0 {
		return 0, nil, errors.New("malformed signature header")
	}
	return ts, sigs, nil
}
