package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/auth"
)

const testSecret = "a-very-long-shared-secret-for-hs256-tokens"

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Module Suite")
}

func claims(sub, role string, expiresIn time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   sub,
		"role":  role,
		"email": sub + "@example.com",
		"iss":   "https://id.example.test",
		"aud":   "creatorpay",
		"exp":   time.Now().Add(expiresIn).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func signHS256(c jwt.MapClaims, secret string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	Expect(err).ToNot(HaveOccurred())
	return token
}

var securityConfig = internal.SecurityConfig{
	JWTSecret: testSecret,
	Issuer:    "https://id.example.test",
	Audience:  "creatorpay",
}

var _ = Describe("JWTVerifier", func() {
	Context("with a shared secret", func() {
		var verifier *auth.JWTVerifier

		BeforeEach(func() {
			var err error
			verifier, err = auth.NewJWTVerifier(securityConfig)
			Expect(err).ToNot(HaveOccurred())
		})

		It("returns the actor from a valid token", func() {
			actor, err := verifier.Verify(signHS256(claims("brand-1", "brand", time.Hour), testSecret))
			Expect(err).ToNot(HaveOccurred())
			Expect(actor).To(Equal(internal.Actor{ID: "brand-1", Email: "brand-1@example.com", Role: internal.RoleBrand}))
		})

		It("reports expired tokens", func() {
			_, err := verifier.Verify(signHS256(claims("brand-1", "brand", -time.Hour), testSecret))
			Expect(err).To(Equal(internal.ErrTokenExpired))
		})

		DescribeTable("rejects tokens it should not trust",
			func(mutate func(jwt.MapClaims), secret string) {
				c := claims("inf-1", "influencer", time.Hour)
				mutate(c)
				_, err := verifier.Verify(signHS256(c, secret))
				Expect(err).To(Equal(internal.ErrInvalidToken))
			},
			Entry("wrong secret", func(jwt.MapClaims) {}, "another-secret-that-is-long-enough-too"),
			Entry("wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.test" }, testSecret),
			Entry("wrong audience", func(c jwt.MapClaims) { c["aud"] = "other-app" }, testSecret),
			Entry("unknown role", func(c jwt.MapClaims) { c["role"] = "superuser" }, testSecret),
			Entry("no subject", func(c jwt.MapClaims) { delete(c, "sub") }, testSecret),
			Entry("no expiry", func(c jwt.MapClaims) { delete(c, "exp") }, testSecret),
		)

		It("rejects garbage", func() {
			_, err := verifier.Verify("not-a-jwt")
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})
	})

	Context("with an RSA public key", func() {
		var (
			key      *rsa.PrivateKey
			verifier *auth.JWTVerifier
		)

		BeforeEach(func() {
			var err error
			key, err = rsa.GenerateKey(rand.Reader, 2048)
			Expect(err).ToNot(HaveOccurred())
			der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
			Expect(err).ToNot(HaveOccurred())
			pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

			verifier, err = auth.NewJWTVerifier(internal.SecurityConfig{
				JWTPublicKey: base64.StdEncoding.EncodeToString(pemBytes),
				RoleClaim:    "https://creatorpay.test/role",
			})
			Expect(err).ToNot(HaveOccurred())
		})

		It("reads the role from the configured claim", func() {
			c := claims("inf-1", "", time.Hour)
			c["https://creatorpay.test/role"] = "influencer"
			token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
			Expect(err).ToNot(HaveOccurred())

			actor, err := verifier.Verify(token)
			Expect(err).ToNot(HaveOccurred())
			Expect(actor.Role).To(Equal(internal.RoleInfluencer))
		})

		It("refuses HS256 tokens", func() {
			_, err := verifier.Verify(signHS256(claims("inf-1", "influencer", time.Hour), testSecret))
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})
	})

	It("needs a key or a secret", func() {
		_, err := auth.NewJWTVerifier(internal.SecurityConfig{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Handler", func() {
	var router chi.Router

	BeforeEach(func() {
		verifier, err := auth.NewJWTVerifier(securityConfig)
		Expect(err).ToNot(HaveOccurred())
		h := auth.NewHandler(verifier)

		router = chi.NewRouter()
		router.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Get("/me", h.Me)
			r.With(h.RequireRoles(internal.RoleBrand)).Get("/brand-only", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("puts the verified actor in the request context", func() {
		rec := get("/me", signHS256(claims("inf-1", "influencer", time.Hour), testSecret))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var actor internal.Actor
		Expect(json.Unmarshal(rec.Body.Bytes(), &actor)).To(Succeed())
		Expect(actor.ID).To(Equal("inf-1"))
	})

	It("answers 401 without a token", func() {
		Expect(get("/me", "").Code).To(Equal(http.StatusUnauthorized))
	})

	It("answers 401 for an expired token", func() {
		rec := get("/me", signHS256(claims("inf-1", "influencer", -time.Hour), testSecret))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Body.String()).To(ContainSubstring("TOKEN_EXPIRED"))
	})

	It("answers 403 for the wrong role", func() {
		Expect(get("/brand-only", signHS256(claims("inf-1", "influencer", time.Hour), testSecret)).Code).To(Equal(http.StatusForbidden))
		Expect(get("/brand-only", signHS256(claims("brand-1", "brand", time.Hour), testSecret)).Code).To(Equal(http.StatusNoContent))
	})
})
