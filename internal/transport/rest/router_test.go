package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/application"
	"github.com/frahmantamala/creatorpay/internal/auth"
	"github.com/frahmantamala/creatorpay/internal/connect"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/payment"
	"github.com/frahmantamala/creatorpay/internal/transport/rest"
	"github.com/frahmantamala/creatorpay/internal/transport/swagger"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rest Suite")
}

type staticVerifier struct {
	actor internal.Actor
}

func (v staticVerifier) Verify(token string) (internal.Actor, error) {
	if token != "valid" {
		return internal.Actor{}, internal.ErrInvalidToken
	}
	return v.actor, nil
}

type stubChecker struct {
	err error
}

func (c stubChecker) PingContext(ctx context.Context) error { return c.err }

var _ = Describe("Router", func() {
	var (
		router *chi.Mux
		docs   *swagger.Document
		broker stubChecker
	)

	BeforeEach(func() {
		var err error
		docs, err = swagger.Load(context.Background(), "../../../api/openapi.yml")
		Expect(err).ToNot(HaveOccurred())

		broker = stubChecker{}
	})

	JustBeforeEach(func() {
		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Handlers{
			Health:       rest.NewHealthHandler(nil, map[string]rest.Checker{"rabbitmq": broker}),
			Auth:         auth.NewHandler(staticVerifier{actor: internal.Actor{ID: "inf-1", Role: internal.RoleInfluencer}}),
			Application:  application.NewHandler(nil),
			Payment:      payment.NewHandler(nil),
			Webhook:      payment.NewWebhookHandler(nil, nil),
			Connect:      connect.NewHandler(nil),
			Notification: notification.NewHandler(nil),
			Docs:         docs,
		}, rest.Options{
			AllowedOrigins: []string{"*"},
			Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	})

	serve := func(method, target, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("documents every mounted API route", func() {
		var undocumented []string
		err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if !strings.HasPrefix(route, "/api/v1/") {
				return nil
			}
			path := strings.TrimSuffix(strings.TrimPrefix(route, "/api/v1"), "/")
			if !docs.HasOperation(method, path) {
				undocumented = append(undocumented, method+" "+path)
			}
			return nil
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(undocumented).To(BeEmpty())
	})

	It("serves the OpenAPI document", func() {
		rec := serve(http.MethodGet, "/openapi.yml", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("openapi: 3.0.3"))
		Expect(docs.Version()).To(Equal("1.0.0"))
	})

	It("answers ping without a token", func() {
		rec := serve(http.MethodGet, "/api/v1/ping", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("X-Trace-ID")).ToNot(BeEmpty())
	})

	It("keeps protected routes behind the token check", func() {
		rec := serve(http.MethodGet, "/api/v1/notifications", "")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))

		rec = serve(http.MethodGet, "/api/v1/auth/me", "expired")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("enforces roles before reaching the handler", func() {
		rec := serve(http.MethodPost, "/api/v1/payments/create-payment-intent", "valid")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("returns the current actor", func() {
		rec := serve(http.MethodGet, "/api/v1/auth/me", "valid")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var actor internal.Actor
		Expect(json.Unmarshal(rec.Body.Bytes(), &actor)).To(Succeed())
		Expect(actor.ID).To(Equal("inf-1"))
	})

	It("uses the error envelope for unknown routes", func() {
		rec := serve(http.MethodGet, "/api/v1/nope", "")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(rec.Body.String()).To(ContainSubstring(`"code":"NOT_FOUND"`))
	})

	Context("when a dependency is down", func() {
		BeforeEach(func() {
			broker = stubChecker{err: errors.New("connection refused")}
		})

		It("reports unhealthy with 503", func() {
			rec := serve(http.MethodGet, "/api/v1/health", "")
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))

			var resp rest.HealthResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Status).To(Equal(rest.HealthUnhealthy))
			Expect(resp.Components).To(HaveKey("rabbitmq"))
		})
	})

	It("reports healthy when every component answers", func() {
		rec := serve(http.MethodGet, "/api/v1/health", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
