package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry 读取令牌的exp，不校验签名
// 签名由后端校验，这里只用来丢弃明显过期的会话
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired 判断令牌是否已过期，无法解析的令牌视为未过期
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
