package transport

import "context"

type ctxKey string

const (
	merchantAccountKey ctxKey = "merchant_account"
	merchantEmailKey   ctxKey = "merchant_email"
)

// WithMerchant stores the authenticated merchant's payment sub-account id
// and contact email on the context.
func WithMerchant(ctx context.Context, accountID, email string) context.Context {
	ctx = context.WithValue(ctx, merchantAccountKey, accountID)
	ctx = context.WithValue(ctx, merchantEmailKey, email)
	return ctx
}

func MerchantAccountFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(merchantAccountKey).(string)
	return id, ok && id != ""
}

func MerchantEmailFrom(ctx context.Context) string {
	email, _ := ctx.Value(merchantEmailKey).(string)
	return email
}
