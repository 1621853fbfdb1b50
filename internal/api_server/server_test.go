package apiserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	apiserver "github.com/Champ-Deep/LakeB2B-SlideSmith/internal/api_server"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/artifact"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	handlers "github.com/Champ-Deep/LakeB2B-SlideSmith/internal/handlers/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type noThemes struct{}

func (noThemes) ListThemes(context.Context) ([]domain.Theme, error) {
	return nil, nil
}

var _ = Describe("api server", Ordered, func() {
	var (
		s      store.Store
		router http.Handler
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		cfg.Database.Type = "memory"
		cfg.Service.AllowedOrigins = []string{"https://app.lakeb2b.com"}
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		Expect(s.InitialMigration(context.TODO())).To(Succeed())

		dispatcher := pipeline.NewLocalDispatcher(context.TODO(), 1)
		runner := pipeline.NewRowRunner(s.Progress(), nil, nil, nil, nil, pipeline.RowConfig{})
		coordinator := pipeline.NewCoordinator(s, runner, dispatcher, nil, 10)
		h := handlers.NewServiceHandler(
			service.NewJobService(s, coordinator, artifact.NewLocalStore(GinkgoT().TempDir()), "uploads", 10),
			service.NewHistoryService(s),
			service.NewThemeService(noThemes{}),
			1024,
		)
		router = apiserver.New(cfg, h, nil).Router()
	})

	AfterAll(func() {
		_ = s.Close()
	})

	It("serves the health endpoint", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("echoes the request id in error replies", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/unknown", nil)
		req.Header.Set("x-request-id", "req-42")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNotFound))
		var body api.Error
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.RequestId).NotTo(BeNil())
		Expect(*body.RequestId).To(Equal("req-42"))
	})

	It("answers CORS preflight for allowed origins only", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
		req.Header.Set("Origin", "https://app.lakeb2b.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.lakeb2b.com"))

		req = httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})
