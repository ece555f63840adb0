package auth

import "context"

type ctxKeyToken struct{}

type ctxKeyClaims struct{}

// WithToken сохраняет сырой bearer токен: его пробрасывают клиенты соседних сервисов
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyToken{}, token)
}

// TokenFromContext возвращает токен, если middleware его положил
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ctxKeyToken{}).(string)
	return token, ok && token != ""
}

func withClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims{}, c)
}

// ClaimsFromContext возвращает claims проверенного токена
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims{}).(*Claims)
	return c, ok
}
