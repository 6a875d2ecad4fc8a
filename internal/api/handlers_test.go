package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowmarket/backend/internal/catalog"
	"flowmarket/backend/internal/composer"
	"flowmarket/backend/internal/logging"
	"flowmarket/backend/internal/repository"
	"flowmarket/backend/pkg/models"
)

type stubCatalog struct {
	workflows map[string]*models.WorkflowDescriptor
}

func (s *stubCatalog) ListWorkflows(ctx context.Context, filter catalog.Filter) ([]models.WorkflowDescriptor, error) {
	var out []models.WorkflowDescriptor
	for _, w := range s.workflows {
		out = append(out, *w)
	}
	return out, nil
}

func (s *stubCatalog) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error) {
	w, ok := s.workflows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return w, nil
}

// stubRepo implements the handful of Repository methods the handlers under
// test reach; everything else panics through the embedded nil interface.
type stubRepo struct {
	repository.Repository
	pipelines map[string]*models.Pipeline
	created   []*models.Pipeline
	pingErr   error
}

func (s *stubRepo) Ping(ctx context.Context) error { return s.pingErr }

func (s *stubRepo) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	p, ok := s.pipelines[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (s *stubRepo) ListPipelinesByOwner(ctx context.Context, owner string) ([]models.Pipeline, error) {
	var out []models.Pipeline
	for _, p := range s.pipelines {
		if p.OwnerAddress == owner {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubRepo) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	if err := models.ValidateSteps(p.Steps); err != nil {
		return err
	}
	s.created = append(s.created, p)
	return nil
}

func newTestServer(cat catalog.Catalog, repo repository.Repository) (*echo.Echo, *Server) {
	logger := logging.NewLogger("error")
	comp := composer.New(cat, composer.DefaultScoringConfig(), logger)
	s := NewServer(comp, nil, cat, repo, nil, logger)
	e := echo.New()
	e.Validator = NewValidator()
	return e, s
}

func request(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func testWorkflows() map[string]*models.WorkflowDescriptor {
	return map[string]*models.WorkflowDescriptor{
		"wf-oracle": {
			ID: "wf-oracle", Name: "ETH Price Oracle", Category: "price-feed",
			OutputSchema: models.Schema{Properties: []models.SchemaField{
				{Name: "symbol", Type: models.FieldString},
				{Name: "price", Type: models.FieldNumber},
			}},
			TotalExecutions: 100, SuccessfulExecutions: 95,
		},
		"wf-alert": {
			ID: "wf-alert", Name: "Telegram Alert Sender", Category: "notification",
			InputSchema: models.Schema{
				Properties: []models.SchemaField{
					{Name: "message", Type: models.FieldString},
					{Name: "price", Type: models.FieldNumber},
				},
				Required: []string{"message"},
			},
			TotalExecutions: 200, SuccessfulExecutions: 180,
		},
	}
}

func TestCheckCompatibility(t *testing.T) {
	e, s := newTestServer(&stubCatalog{workflows: testWorkflows()}, nil)

	c, rec := request(e, http.MethodPost, "/api/v1/pipelines/check-compatibility",
		`{"source_workflow_id":"wf-oracle","target_workflow_id":"wf-alert"}`)
	require.NoError(t, s.CheckCompatibility(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report composer.CompatibilityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Compatible)
	assert.Equal(t, 1.0, report.Score)
	require.Len(t, report.Suggestions, 2)
	assert.Equal(t, "price", report.Suggestions[0].TargetField)
	assert.Equal(t, 1.0, report.Suggestions[0].Confidence)
	assert.Equal(t, "message", report.Suggestions[1].TargetField)
	assert.Equal(t, models.MatchTypeCoercion, report.Suggestions[1].Reason)
}

func TestCheckCompatibilityUnknownWorkflow(t *testing.T) {
	e, s := newTestServer(&stubCatalog{workflows: testWorkflows()}, nil)

	c, _ := request(e, http.MethodPost, "/api/v1/pipelines/check-compatibility",
		`{"source_workflow_id":"wf-oracle","target_workflow_id":"nope"}`)
	err := s.CheckCompatibility(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestComposeNoCandidates(t *testing.T) {
	e, s := newTestServer(&stubCatalog{workflows: nil}, nil)

	c, _ := request(e, http.MethodPost, "/api/v1/pipelines/compose",
		`{"goal":"alert me when ETH drops"}`)
	err := s.ComposePipeline(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnprocessableEntity, he.Code)
}

func TestComposeProposesPipeline(t *testing.T) {
	e, s := newTestServer(&stubCatalog{workflows: testWorkflows()}, nil)

	c, rec := request(e, http.MethodPost, "/api/v1/pipelines/compose",
		`{"goal":"alert me on telegram when the ETH price moves"}`)
	require.NoError(t, s.ComposePipeline(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var proposal models.ProposedPipeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposal))
	require.Len(t, proposal.Steps, 2)
	assert.Equal(t, "wf-oracle", proposal.Steps[0].WorkflowID)
	assert.Equal(t, "wf-alert", proposal.Steps[1].WorkflowID)
}

func TestCreatePipeline(t *testing.T) {
	repo := &stubRepo{}
	e, s := newTestServer(&stubCatalog{}, repo)

	c, rec := request(e, http.MethodPost, "/api/v1/pipelines",
		`{"name":"Price alert","steps":[{"id":"step-a","workflow_id":"wf-oracle","position":0}]}`)
	c.Set("owner_address", "0xabc")

	require.NoError(t, s.CreatePipeline(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "0xabc", repo.created[0].OwnerAddress)
	assert.NotEmpty(t, repo.created[0].ID)
}

func TestCreatePipelineRejectsBadSteps(t *testing.T) {
	e, s := newTestServer(&stubCatalog{}, &stubRepo{})

	// positions are not contiguous
	c, _ := request(e, http.MethodPost, "/api/v1/pipelines",
		`{"name":"Broken","steps":[{"id":"step-a","workflow_id":"wf-oracle","position":1}]}`)
	c.Set("owner_address", "0xabc")

	err := s.CreatePipeline(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestCreatePipelineRequiresOwner(t *testing.T) {
	e, s := newTestServer(&stubCatalog{}, &stubRepo{})

	c, _ := request(e, http.MethodPost, "/api/v1/pipelines", `{"name":"X","steps":[]}`)
	err := s.CreatePipeline(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestListPipelinesOnlyReturnsOwn(t *testing.T) {
	repo := &stubRepo{pipelines: map[string]*models.Pipeline{
		"pl-1": {ID: "pl-1", OwnerAddress: "0xabc"},
		"pl-2": {ID: "pl-2", OwnerAddress: "0xother"},
	}}
	e, s := newTestServer(&stubCatalog{}, repo)

	c, rec := request(e, http.MethodGet, "/api/v1/pipelines", "")
	c.Set("owner_address", "0xabc")

	require.NoError(t, s.ListPipelines(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var pipelines []models.Pipeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pipelines))
	require.Len(t, pipelines, 1)
	assert.Equal(t, "pl-1", pipelines[0].ID)
}

func TestExecutePipelineWrongOwner(t *testing.T) {
	repo := &stubRepo{pipelines: map[string]*models.Pipeline{
		"pl-1": {ID: "pl-1", OwnerAddress: "0xowner"},
	}}
	e, s := newTestServer(&stubCatalog{}, repo)

	c, _ := request(e, http.MethodPost, "/api/v1/pipelines/pl-1/execute", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("pl-1")
	c.Set("owner_address", "0xsomeoneelse")

	err := s.ExecutePipeline(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestGetWorkflowNotFound(t *testing.T) {
	e, s := newTestServer(&stubCatalog{}, nil)

	c, _ := request(e, http.MethodGet, "/api/v1/workflows/nope", "")
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := s.GetWorkflow(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestHealthDegradedOnPingFailure(t *testing.T) {
	e, s := newTestServer(&stubCatalog{}, &stubRepo{pingErr: context.DeadlineExceeded})

	c, rec := request(e, http.MethodGet, "/healthz", "")
	require.NoError(t, s.HandleHealth(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
}
