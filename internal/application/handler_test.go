package application_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/application"
	campaigndm "github.com/frahmantamala/creatorpay/internal/core/datamodel/campaign"
)

func requestAs(method, target string, body []byte, actor *internal.Actor) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if actor == nil {
		return req
	}
	return req.WithContext(internal.ContextWithActor(req.Context(), *actor))
}

var _ = Describe("Handler", func() {
	var (
		router   chi.Router
		service  *application.Service
		recorder *httptest.ResponseRecorder

		brand      = internal.Actor{ID: "brand-1", Role: internal.RoleBrand}
		influencer = internal.Actor{ID: "inf-1", Role: internal.RoleInfluencer}
	)

	BeforeEach(func() {
		campaigns := &mockCampaigns{campaigns: map[string]*campaigndm.Campaign{
			"camp-1": {ID: "camp-1", BrandID: "brand-1", Title: "Launch", Status: campaigndm.StatusActive},
		}}
		service = application.NewService(newMockRepository(), campaigns, &recordingNotifier{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		handler := application.NewHandler(service)

		router = chi.NewRouter()
		router.Post("/applications", handler.Submit)
		router.Get("/applications", handler.List)
		router.Get("/applications/{id}", handler.Get)
		router.Put("/applications/{id}/status", handler.UpdateStatus)
		router.Delete("/applications/{id}", handler.Withdraw)
		recorder = httptest.NewRecorder()
	})

	submitViaHTTP := func() application.Application {
		body, _ := json.Marshal(map[string]interface{}{"campaign_id": "camp-1", "proposed_rate": 10000})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(http.MethodPost, "/applications", body, &influencer))
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var app application.Application
		Expect(json.Unmarshal(rec.Body.Bytes(), &app)).To(Succeed())
		return app
	}

	It("creates an application", func() {
		app := submitViaHTTP()
		Expect(app.ID).ToNot(BeEmpty())
		Expect(string(app.Status)).To(Equal("pending"))
	})

	It("returns 401 without an actor", func() {
		router.ServeHTTP(recorder, requestAs(http.MethodPost, "/applications", []byte(`{}`), nil))
		Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 400 for unknown fields", func() {
		router.ServeHTTP(recorder, requestAs(http.MethodPost, "/applications", []byte(`{"campaign_id":"camp-1","proposed_rate":1,"bonus":5}`), &influencer))
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 409 with the duplicate code for a second application", func() {
		submitViaHTTP()
		body, _ := json.Marshal(map[string]interface{}{"campaign_id": "camp-1", "proposed_rate": 5})
		router.ServeHTTP(recorder, requestAs(http.MethodPost, "/applications", body, &influencer))
		Expect(recorder.Code).To(Equal(http.StatusConflict))

		var resp map[string]map[string]interface{}
		Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["error"]["code"]).To(Equal(string(internal.ErrCodeDuplicateApplication)))
	})

	It("lets the brand accept through the status endpoint", func() {
		app := submitViaHTTP()
		router.ServeHTTP(recorder, requestAs(http.MethodPut, "/applications/"+app.ID+"/status", []byte(`{"status":"accepted"}`), &brand))
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(recorder.Body.String()).To(ContainSubstring(`"status":"accepted"`))
	})

	It("returns 400 for an illegal edge", func() {
		app := submitViaHTTP()
		router.ServeHTTP(recorder, requestAs(http.MethodPut, "/applications/"+app.ID+"/status", []byte(`{"status":"completed"}`), &brand))
		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 404 for a missing application", func() {
		router.ServeHTTP(recorder, requestAs(http.MethodGet, "/applications/missing", nil, &brand))
		Expect(recorder.Code).To(Equal(http.StatusNotFound))
	})

	It("withdraws through the withdraw endpoint", func() {
		app := submitViaHTTP()
		router.ServeHTTP(recorder, requestAs(http.MethodDelete, "/applications/"+app.ID, nil, &influencer))
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(recorder.Body.String()).To(ContainSubstring(`"status":"withdrawn"`))
	})

	It("lists the caller's applications", func() {
		submitViaHTTP()
		router.ServeHTTP(recorder, requestAs(http.MethodGet, "/applications?limit=5", nil, &influencer))
		Expect(recorder.Code).To(Equal(http.StatusOK))

		var resp struct {
			Applications []application.Application `json:"applications"`
			Limit        int                       `json:"limit"`
		}
		Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Applications).To(HaveLen(1))
		Expect(resp.Limit).To(Equal(5))
	})
})
