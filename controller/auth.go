package controller

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// basicAuth guards the API with HTTP basic auth. The configured password is
// a bcrypt hash.
func (c *Controller) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(c.cfg.Auth.User)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(c.cfg.Auth.Password), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="labjacker"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
