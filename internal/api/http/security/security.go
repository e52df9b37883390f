// Package security wires the session, anti-forgery, rate limit and cookie
// encryption middlewares.
package security

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/spec-kit/crm-basico/internal/observability"
	apperrors "github.com/spec-kit/crm-basico/pkg/util/errorutil"
)

const (
	// CSRFContextKey is the fiber.Ctx local holding the current token.
	CSRFContextKey = "csrf"
	// CSRFFormField is the hidden form field carrying the token.
	CSRFFormField = "_csrf"
	// FlashErrorKey is the session key of the one-shot error message.
	FlashErrorKey = "flash_error"

	CSRFFailureMessage = "Token CSRF inválido. Recarga la página e intenta nuevamente."
	RateLimitMessage   = "Demasiadas solicitudes. Intenta nuevamente en un momento."

	csrfCookieName = "csrf_"
	keyInfo        = "crm-basico cookie encryption"
)

// Options configures the security middlewares.
type Options struct {
	Production      bool
	CookieName      string
	MaxAge          time.Duration
	SessionStorage  fiber.Storage
	LimiterStorage  fiber.Storage
	RateLimitMax    int
	RateLimitWindow time.Duration
	Logger          *zap.Logger
}

func (o Options) sameSite() string {
	if o.Production {
		return "Strict"
	}
	return "Lax"
}

// NewSessionStore returns the cookie-bound session store. A nil storage
// keeps sessions in process memory.
func NewSessionStore(opts Options) *session.Store {
	name := opts.CookieName
	if name == "" {
		name = "session"
	}
	return session.New(session.Config{
		Expiration:     opts.MaxAge,
		Storage:        opts.SessionStorage,
		KeyLookup:      "cookie:" + name,
		CookieSecure:   opts.Production,
		CookieHTTPOnly: true,
		CookieSameSite: opts.sameSite(),
		KeyGenerator:   uuid.NewString,
	})
}

// CSRF validates the _csrf form field on unsafe methods against the token
// bound to the session. Failures never surface as a 403: they redirect with
// the failure message instead.
func CSRF(store *session.Store, opts Options) fiber.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return csrf.New(csrf.Config{
		Extractor:      csrf.CsrfFromForm(CSRFFormField),
		CookieName:     csrfCookieName,
		CookieSecure:   opts.Production,
		CookieHTTPOnly: true,
		CookieSameSite: opts.sameSite(),
		Expiration:     opts.MaxAge,
		Session:        store,
		ContextKey:     CSRFContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			rejected := apperrors.ToDomainError(apperrors.NewForbidden(CSRFFailureMessage, err))
			logger.Warn("csrf token rejected",
				zap.String("type", "security"),
				zap.String("code", rejected.Code),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("referer", c.Get(fiber.HeaderReferer)),
				zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
				zap.String("ip", c.IP()),
				zap.Error(err))

			if id, ok := editTarget(c.Path()); ok {
				return redirect(c, "/contactos/"+id+"/editar", "error", rejected.Message)
			}
			if ferr := SetFlash(c, store, FlashErrorKey, rejected.Message); ferr != nil {
				logger.Warn("unable to store flash", zap.Error(ferr))
				return redirect(c, "/", "error", rejected.Message)
			}
			return c.Redirect("/")
		},
	})
}

// editTarget extracts the contact id from /contactos/:id/editar paths.
func editTarget(path string) (string, bool) {
	if !strings.Contains(path, "/contactos/") || !strings.Contains(path, "/editar") {
		return "", false
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RateLimit bounds unsafe requests per client IP and redirects home with a
// message when the limit is hit.
func RateLimit(opts Options) fiber.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	max := opts.RateLimitMax
	if max <= 0 {
		max = 60
	}
	window := opts.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead || c.Method() == fiber.MethodOptions
		},
		Max:        max,
		Expiration: window,
		Storage:    opts.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			limited := apperrors.ToDomainError(apperrors.NewTooManyRequests(RateLimitMessage))
			logger.Warn("rate limit reached",
				zap.String("type", "security"),
				zap.String("code", limited.Code),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()))
			return redirect(c, "/", "error", limited.Message)
		},
	})
}

// EncryptCookies encrypts every cookie except the anti-forgery one with a
// key derived from secret. An empty secret yields a random per-process key.
func EncryptCookies(secret string) (fiber.Handler, error) {
	key, err := CookieKey(secret)
	if err != nil {
		return nil, err
	}
	return encryptcookie.New(encryptcookie.Config{
		Key:    key,
		Except: []string{csrfCookieName},
	}), nil
}

// CookieKey derives a base64 AES-256 key from secret with HKDF-SHA256.
func CookieKey(secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return encryptcookie.GenerateKey(), nil
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return "", fmt.Errorf("derive cookie key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Token returns the anti-forgery token issued for this request.
func Token(c *fiber.Ctx) string {
	token, _ := c.Locals(CSRFContextKey).(string)
	return token
}

// SetFlash stores a one-shot message in the session.
func SetFlash(c *fiber.Ctx, store *session.Store, key, message string) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	c.Locals(observability.SessionIDKey, sess.ID())
	sess.Set(key, message)
	return sess.Save()
}

// PopFlash reads and clears a one-shot message. Missing sessions or
// storage errors yield an empty message.
func PopFlash(c *fiber.Ctx, store *session.Store, key string) string {
	if store == nil {
		return ""
	}
	sess, err := store.Get(c)
	if err != nil {
		return ""
	}
	c.Locals(observability.SessionIDKey, sess.ID())
	message, _ := sess.Get(key).(string)
	if message == "" {
		return ""
	}
	sess.Delete(key)
	_ = sess.Save()
	return message
}

func redirect(c *fiber.Ctx, path, key, message string) error {
	return c.Redirect(path + "?" + url.Values{key: {message}}.Encode())
}
