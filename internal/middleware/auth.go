package middleware

import (
	"net/http"

	"umari-core/internal/auth"
	"umari-core/internal/transport"

	"github.com/golang-jwt/jwt/v5"
)

// RequireMerchant rejects requests without a valid merchant token and puts
// the merchant's payment sub-account id on the context. Services re-verify
// ownership against it on every call.
func RequireMerchant(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			accountID, _ := claims["merchant_account"].(string)
			if accountID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			email, _ := claims["email"].(string)

			ctx := transport.WithMerchant(r.Context(), accountID, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
