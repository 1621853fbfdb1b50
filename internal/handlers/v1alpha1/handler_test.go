package v1alpha1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/artifact"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	handlers "github.com/Champ-Deep/LakeB2B-SlideSmith/internal/handlers/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

// idleDispatcher accepts tasks and never runs them.
type idleDispatcher struct {
	tasks []pipeline.RowTask
}

func (d *idleDispatcher) Bind(pipeline.RowExecutor) {}

func (d *idleDispatcher) Dispatch(_ context.Context, tasks ...pipeline.RowTask) error {
	d.tasks = append(d.tasks, tasks...)
	return nil
}

type stubThemes struct {
	err error
}

func (s stubThemes) ListThemes(context.Context) ([]domain.Theme, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Theme{{ID: "chisel", Name: "Chisel"}}, nil
}

func workbook(rows ...[]any) []byte {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		Expect(err).To(BeNil())
		Expect(f.SetSheetRow("Sheet1", cell, &row)).To(Succeed())
	}
	var buf bytes.Buffer
	Expect(f.Write(&buf)).To(Succeed())
	return buf.Bytes()
}

func multipartBody(filename string, data []byte) (io.Reader, string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		Expect(err).To(BeNil())
		_, err = part.Write(data)
		Expect(err).To(BeNil())
	}
	Expect(mw.Close()).To(Succeed())
	return &body, mw.FormDataContentType()
}

func decode[T any](rec *httptest.ResponseRecorder) T {
	var v T
	Expect(json.Unmarshal(rec.Body.Bytes(), &v)).To(Succeed())
	return v
}

var _ = Describe("service handler", func() {
	var (
		s          store.Store
		router     *chi.Mux
		dispatcher *idleDispatcher
		artifacts  *artifact.LocalStore
		themes     stubThemes
		ctx        context.Context
	)

	do := func(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, body)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	upload := func(filename string, data []byte) *httptest.ResponseRecorder {
		body, ct := multipartBody(filename, data)
		return do(http.MethodPost, "/api/v1/jobs", body, ct)
	}

	BeforeEach(func() {
		ctx = context.TODO()
		cfg := config.NewDefault()
		cfg.Database.Type = "memory"
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		Expect(s.InitialMigration(ctx)).To(Succeed())

		dispatcher = &idleDispatcher{}
		runner := pipeline.NewRowRunner(s.Progress(), nil, nil, nil, nil, pipeline.RowConfig{})
		coordinator := pipeline.NewCoordinator(s, runner, dispatcher, nil, 10)
		artifacts = artifact.NewLocalStore(GinkgoT().TempDir())
		themes = stubThemes{}

		h := handlers.NewServiceHandler(
			service.NewJobService(s, coordinator, artifacts, "uploads", 10),
			service.NewHistoryService(s),
			service.NewThemeService(&themes),
			64*1024,
		)
		router = chi.NewRouter()
		h.Register(router)
	})

	AfterEach(func() {
		_ = s.Close()
	})

	Context("jobs", func() {
		It("accepts a spreadsheet and reports its status", func() {
			rec := upload("leads.xlsx", workbook([]any{"Company"}, []any{"Acme"}, []any{"Globex"}))
			Expect(rec.Code).To(Equal(http.StatusAccepted))
			created := decode[api.JobCreated](rec)
			Expect(created.TotalRows).To(Equal(2))
			Expect(dispatcher.tasks).To(HaveLen(2))

			rec = do(http.MethodGet, "/api/v1/jobs/"+created.JobID, nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			status := decode[api.JobStatusReply](rec)
			Expect(status.Status).To(Equal(api.JobStatusProcessing))
			Expect(status.ProgressPercent).To(Equal(0))
			Expect(status.Rows).To(HaveLen(2))
			Expect(status.Rows[0].RowIndex).To(Equal(2))

			rec = do(http.MethodGet, "/api/v1/jobs/"+created.JobID+"/rows/3", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode[api.RowStatus](rec).CompanyName).To(Equal("Globex"))

			Expect(do(http.MethodGet, "/api/v1/jobs/"+created.JobID+"/rows/99", nil, "").Code).To(Equal(http.StatusNotFound))
			Expect(do(http.MethodGet, "/api/v1/jobs/"+created.JobID+"/rows/two", nil, "").Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects bad uploads", func() {
			Expect(upload("leads.csv", []byte("company\nacme")).Code).To(Equal(http.StatusBadRequest))
			Expect(upload("", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(upload("leads.xlsx", []byte("garbage")).Code).To(Equal(http.StatusBadRequest))
			Expect(upload("leads.xlsx", bytes.Repeat([]byte("x"), 128*1024)).Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(dispatcher.tasks).To(BeEmpty())
		})

		It("returns 404 when job not found", func() {
			rec := do(http.MethodGet, "/api/v1/jobs/missing", nil, "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(decode[api.Error](rec).Message).To(ContainSubstring("job missing not found"))
		})

		It("cancels a running job and refuses to cancel a finished one", func() {
			created := decode[api.JobCreated](upload("leads.xlsx", workbook([]any{"Company"}, []any{"Acme"})))

			rec := do(http.MethodDelete, "/api/v1/jobs/"+created.JobID, nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode[api.JobStatusReply](rec).Cancelled).To(BeTrue())

			Expect(s.Progress().FailJob(ctx, created.JobID, "stopped")).To(Succeed())
			Expect(do(http.MethodDelete, "/api/v1/jobs/"+created.JobID, nil, "").Code).To(Equal(http.StatusConflict))
			Expect(do(http.MethodDelete, "/api/v1/jobs/missing", nil, "").Code).To(Equal(http.StatusNotFound))
		})

		It("serves the results workbook once written", func() {
			created := decode[api.JobCreated](upload("leads.xlsx", workbook([]any{"Company"}, []any{"Acme"})))

			Expect(do(http.MethodGet, "/api/v1/jobs/"+created.JobID+"/download", nil, "").Code).To(Equal(http.StatusBadRequest))

			ref, err := artifacts.Save(ctx, "outputs/leads_with_decks.xlsx", strings.NewReader("workbook"), 8)
			Expect(err).To(BeNil())
			Expect(s.Progress().CompleteJob(ctx, created.JobID, ref)).To(Succeed())

			rec := do(http.MethodGet, "/api/v1/jobs/"+created.JobID+"/download", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring(`filename="leads_with_decks.xlsx"`))
			Expect(rec.Body.String()).To(Equal("workbook"))
		})
	})

	Context("single prospect", func() {
		It("accepts a valid form and reports the stage", func() {
			body := `{"client_name":"Jane Roe","company":"Acme","role":"CMO","email":"jane@acme.io"}`
			rec := do(http.MethodPost, "/api/v1/single", strings.NewReader(body), "application/json")
			Expect(rec.Code).To(Equal(http.StatusAccepted))
			created := decode[api.SingleProspectCreated](rec)
			Expect(created.CompanyName).To(Equal("Acme"))
			Expect(dispatcher.tasks).To(ConsistOf(pipeline.RowTask{JobID: created.JobID, RowIndex: 0}))

			rec = do(http.MethodGet, "/api/v1/single/"+created.JobID, nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			status := decode[api.SingleStatusReply](rec)
			Expect(status.CurrentStage).To(Equal("queued"))
			Expect(status.ProgressPercent).To(Equal(0))
		})

		DescribeTable("rejects invalid forms",
			func(body, message string) {
				rec := do(http.MethodPost, "/api/v1/single", strings.NewReader(body), "application/json")
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(decode[api.Error](rec).Message).To(ContainSubstring(message))
				Expect(dispatcher.tasks).To(BeEmpty())
			},
			Entry("malformed json", `{"company":`, "invalid request body"),
			Entry("missing role", `{"client_name":"Jane","company":"Acme"}`, "Role is required"),
			Entry("bad linkedin url", `{"client_name":"Jane","company":"Acme","role":"CMO","linkedin_url":"https://example.com/jane"}`, "LinkedInURL"),
		)

		It("returns 404 for an unknown job", func() {
			Expect(do(http.MethodGet, "/api/v1/single/missing", nil, "").Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("history, themes and health", func() {
		It("lists an empty history", func() {
			rec := do(http.MethodGet, "/api/v1/history?limit=5", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			list := decode[api.DeckList](rec)
			Expect(list.Total).To(BeEquivalentTo(0))
			Expect(list.Limit).To(Equal(5))
			Expect(list.Decks).To(BeEmpty())

			Expect(do(http.MethodGet, "/api/v1/history?offset=-1", nil, "").Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodGet, "/api/v1/history/not-a-deck", nil, "").Code).To(Equal(http.StatusNotFound))
		})

		It("lists themes and maps provider failures to 502", func() {
			rec := do(http.MethodGet, "/api/v1/themes", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode[api.ThemeList](rec).Count).To(Equal(1))

			themes.err = errors.New("connection refused")
			Expect(do(http.MethodGet, "/api/v1/themes", nil, "").Code).To(Equal(http.StatusBadGateway))
		})

		It("reports health", func() {
			rec := do(http.MethodGet, "/health", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode[api.Health](rec).Status).To(Equal("ok"))
		})
	})
})
