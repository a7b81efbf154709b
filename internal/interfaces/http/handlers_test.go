package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appworkflow "github.com/nordstift/foundation-console/internal/application/workflow"
	"github.com/nordstift/foundation-console/internal/domain/authz"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

type stubEngine struct {
	startFunc     func(ctx context.Context, kind workflow.Kind, data map[string]interface{}) (*workflow.Instance, error)
	advanceFunc   func(ctx context.Context, id, version int64, input map[string]interface{}) (*workflow.Instance, error)
	rejectFunc    func(ctx context.Context, id, version int64, actor, reason string) (*workflow.Instance, error)
	retreatFunc   func(ctx context.Context, id, version int64) (*workflow.Instance, error)
	resumeFunc    func(ctx context.Context, id int64) (*workflow.Instance, error)
	retryEffectFn func(ctx context.Context, id int64, step int) (*workflow.SideEffectRecord, error)
}

func (s *stubEngine) Start(ctx context.Context, kind workflow.Kind, data map[string]interface{}) (*workflow.Instance, error) {
	return s.startFunc(ctx, kind, data)
}

func (s *stubEngine) Advance(ctx context.Context, id, version int64, input map[string]interface{}) (*workflow.Instance, error) {
	return s.advanceFunc(ctx, id, version, input)
}

func (s *stubEngine) Reject(ctx context.Context, id, version int64, actor, reason string) (*workflow.Instance, error) {
	return s.rejectFunc(ctx, id, version, actor, reason)
}

func (s *stubEngine) Retreat(ctx context.Context, id, version int64) (*workflow.Instance, error) {
	return s.retreatFunc(ctx, id, version)
}

func (s *stubEngine) Resume(ctx context.Context, id int64) (*workflow.Instance, error) {
	return s.resumeFunc(ctx, id)
}

func (s *stubEngine) RetrySideEffect(ctx context.Context, id int64, step int) (*workflow.SideEffectRecord, error) {
	return s.retryEffectFn(ctx, id, step)
}

var _ appworkflow.Engine = (*stubEngine)(nil)

type stubSideEffectRepo struct {
	doneCalls   []string
	failedCalls []string
}

func (s *stubSideEffectRepo) Upsert(context.Context, *workflow.SideEffectRecord) error {
	return nil
}

func (s *stubSideEffectRepo) Get(context.Context, int64, int) (*workflow.SideEffectRecord, error) {
	return nil, nil
}

func (s *stubSideEffectRepo) GetByInstanceID(context.Context, int64) ([]workflow.SideEffectRecord, error) {
	return nil, nil
}

func (s *stubSideEffectRepo) GetPending(context.Context, int) ([]workflow.SideEffectRecord, error) {
	return nil, nil
}

func (s *stubSideEffectRepo) MarkDone(_ context.Context, _ int64, _ int, documentIDs []string) error {
	s.doneCalls = append(s.doneCalls, documentIDs...)
	return nil
}

func (s *stubSideEffectRepo) MarkFailed(_ context.Context, _ int64, _ int, errMsg string) error {
	s.failedCalls = append(s.failedCalls, errMsg)
	return nil
}

type stubSignatureRepo struct {
	records []workflow.SignatureRecord
}

func (s *stubSignatureRepo) Append(_ context.Context, record *workflow.SignatureRecord) error {
	s.records = append(s.records, *record)
	return nil
}

func (s *stubSignatureRepo) GetByInstanceID(context.Context, int64) ([]workflow.SignatureRecord, error) {
	return s.records, nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func newTestServer(engine *stubEngine, sideEffects *stubSideEffectRepo, signatures *stubSignatureRepo) *Server {
	return NewServer(
		ServerConfig{WebhookSecret: "hook-secret"},
		authz.NewEngine(authz.DefaultPermissionTable()),
		engine,
		nil,
		sideEffects,
		signatures,
		nopLogger{},
	)
}

func testInstance() *workflow.Instance {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &workflow.Instance{
		ID:          7,
		Kind:        workflow.KindRegistration,
		CurrentStep: 1,
		Version:     1,
		Status:      workflow.StatusInProgress,
		Data:        map[string]interface{}{"name": "Stiftelsen Havet"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func doRequest(t *testing.T, server *Server, method, path, role string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderActingRole, role)
		req.Header.Set(HeaderActingUser, "user-1")
	}

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, body := doRequest(t, server, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestNavigation_KnownRole(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, body := doRequest(t, server, http.MethodGet, "/api/v1/me/navigation", "board_member", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "board_member", data["role"])
	assert.Equal(t, "meetings", data["default_route"])
	assert.Contains(t, data["screens"], "documents")
	assert.NotContains(t, data["screens"], "settings")
}

func TestNavigation_UnknownRoleGetsFallback(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, body := doRequest(t, server, http.MethodGet, "/api/v1/me/navigation", "intruder", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Empty(t, data["screens"])
	assert.Equal(t, "login", data["default_route"])
}

func TestRouteGuard_DeniesRoleWithoutScreen(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	// An unrecognized role holds no workflow screen at all, so the
	// guard rejects it before any handler runs.
	rec, body := doRequest(t, server, http.MethodGet, "/api/v1/workflows/7", "intruder", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestRouteGuard_DeniesMissingRole(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, _ := doRequest(t, server, http.MethodPost, "/api/v1/workflows", "",
		map[string]interface{}{"kind": "registration"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStartWorkflow(t *testing.T) {
	engine := &stubEngine{
		startFunc: func(_ context.Context, kind workflow.Kind, data map[string]interface{}) (*workflow.Instance, error) {
			assert.Equal(t, workflow.KindRegistration, kind)
			return testInstance(), nil
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, body := doRequest(t, server, http.MethodPost, "/api/v1/workflows", "foundation_owner",
		map[string]interface{}{"kind": "registration", "data": map[string]interface{}{"name": "Stiftelsen Havet"}})

	require.Equal(t, http.StatusCreated, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["id"])
	assert.Equal(t, float64(1), data["current_step"])
	assert.Equal(t, "IN_PROGRESS", data["status"])
}

func TestStartWorkflow_InvalidBody(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, _ := doRequest(t, server, http.MethodPost, "/api/v1/workflows", "admin",
		map[string]interface{}{"data": map[string]interface{}{}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWorkflow_RoleLimitedToItsScreens(t *testing.T) {
	started := false
	engine := &stubEngine{
		startFunc: func(_ context.Context, kind workflow.Kind, _ map[string]interface{}) (*workflow.Instance, error) {
			started = true
			inst := testInstance()
			inst.Kind = kind
			return inst, nil
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	// Board members hold the meetings screen, so a meeting signoff
	// may start.
	rec, _ := doRequest(t, server, http.MethodPost, "/api/v1/workflows", "board_member",
		map[string]interface{}{"kind": "meeting_signoff"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, started)

	// The registration screen is not theirs; the engine is never
	// reached.
	started = false
	rec, body := doRequest(t, server, http.MethodPost, "/api/v1/workflows", "board_member",
		map[string]interface{}{"kind": "registration"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, started)
	assert.Equal(t, false, body["success"])
}

func TestAdvanceWorkflow_KindGatedByScreen(t *testing.T) {
	engine := &stubEngine{
		resumeFunc: func(context.Context, int64) (*workflow.Instance, error) {
			return testInstance(), nil
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	// The stored instance is a registration; a board member may not
	// drive it even though the group guard admits them.
	rec, _ := doRequest(t, server, http.MethodPost, "/api/v1/workflows/7/advance", "board_member",
		map[string]interface{}{"expected_version": 1})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdvanceWorkflow_ValidationError(t *testing.T) {
	blocked := testInstance()
	blocked.Status = workflow.StatusBlocked
	blocked.Version = 2

	engine := &stubEngine{
		resumeFunc: func(context.Context, int64) (*workflow.Instance, error) {
			return testInstance(), nil
		},
		advanceFunc: func(context.Context, int64, int64, map[string]interface{}) (*workflow.Instance, error) {
			return blocked, &workflow.ValidationError{
				StepIndex: 1,
				Checks: []workflow.Check{
					workflow.Fail("minimum_capital", "CAPITAL_BELOW_MINIMUM", "initial capital 10000 SEK is below the 25000 SEK minimum"),
					workflow.Fail("board_size", "BOARD_TOO_SMALL", "board has 2 member(s), at least 3 are required"),
				},
			}
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, body := doRequest(t, server, http.MethodPost, "/api/v1/workflows/7/advance", "foundation_owner",
		map[string]interface{}{"expected_version": 1, "input": map[string]interface{}{"capital_sek": 10000}})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	reasons := body["reasons"].([]interface{})
	require.Len(t, reasons, 2)
	first := reasons[0].(map[string]interface{})
	assert.Equal(t, "CAPITAL_BELOW_MINIMUM", first["code"])

	// The blocked state rides along so the client can render it.
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "BLOCKED", data["status"])
}

func TestAdvanceWorkflow_StaleVersion(t *testing.T) {
	engine := &stubEngine{
		resumeFunc: func(context.Context, int64) (*workflow.Instance, error) {
			return testInstance(), nil
		},
		advanceFunc: func(context.Context, int64, int64, map[string]interface{}) (*workflow.Instance, error) {
			return nil, &workflow.StaleInstanceError{InstanceID: 7, Expected: 1, Actual: 3}
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, _ := doRequest(t, server, http.MethodPost, "/api/v1/workflows/7/advance", "admin",
		map[string]interface{}{"expected_version": 1})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	engine := &stubEngine{
		resumeFunc: func(context.Context, int64) (*workflow.Instance, error) {
			return nil, workflow.ErrInstanceNotFound
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, _ := doRequest(t, server, http.MethodGet, "/api/v1/workflows/99", "admin", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetWorkflow_IncludesSignatures(t *testing.T) {
	engine := &stubEngine{
		resumeFunc: func(context.Context, int64) (*workflow.Instance, error) {
			return testInstance(), nil
		},
	}
	signatures := &stubSignatureRepo{records: []workflow.SignatureRecord{
		{InstanceID: 7, StepIndex: 3, SignerID: "chair-1", Method: "bankid", SignedAt: time.Now()},
	}}
	server := newTestServer(engine, &stubSideEffectRepo{}, signatures)

	rec, body := doRequest(t, server, http.MethodGet, "/api/v1/workflows/7", "admin", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	sigs := data["signatures"].([]interface{})
	require.Len(t, sigs, 1)
	assert.Equal(t, "chair-1", sigs[0].(map[string]interface{})["signer_id"])
}

func TestRejectWorkflow_CompletedIsConflict(t *testing.T) {
	engine := &stubEngine{
		resumeFunc: func(context.Context, int64) (*workflow.Instance, error) {
			return testInstance(), nil
		},
		rejectFunc: func(_ context.Context, _, _ int64, actor, _ string) (*workflow.Instance, error) {
			assert.Equal(t, "user-1", actor)
			return nil, &workflow.IllegalTransitionError{InstanceID: 7, From: workflow.StatusCompleted, Requested: "reject"}
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, _ := doRequest(t, server, http.MethodPost, "/api/v1/workflows/7/reject", "admin",
		map[string]interface{}{"expected_version": 4, "reason": "duplicate application"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetrySideEffect(t *testing.T) {
	engine := &stubEngine{
		resumeFunc: func(context.Context, int64) (*workflow.Instance, error) {
			return testInstance(), nil
		},
		retryEffectFn: func(_ context.Context, id int64, step int) (*workflow.SideEffectRecord, error) {
			assert.Equal(t, int64(7), id)
			assert.Equal(t, 4, step)
			return &workflow.SideEffectRecord{
				InstanceID: 7,
				StepIndex:  4,
				Kind:       workflow.SideEffectRegistrationDocuments,
				Status:     workflow.SideEffectPending,
				Attempts:   2,
			}, nil
		},
	}
	server := newTestServer(engine, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, body := doRequest(t, server, http.MethodPost, "/api/v1/workflows/7/side-effects/4/retry", "admin", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "PENDING", data["status"])
	assert.Equal(t, float64(2), data["attempts"])
}

func TestSideEffectWebhook_RejectsBadSecret(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	raw, err := json.Marshal(map[string]interface{}{"instance_id": 7, "step_index": 4, "status": "done"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook/side-effects", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "wrong")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSideEffectWebhook_MarksDone(t *testing.T) {
	sideEffects := &stubSideEffectRepo{}
	server := newTestServer(&stubEngine{}, sideEffects, &stubSignatureRepo{})

	raw, err := json.Marshal(map[string]interface{}{
		"instance_id":  7,
		"step_index":   4,
		"status":       "done",
		"document_ids": []string{"statutes.xlsx"},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook/side-effects", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "hook-secret")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"statutes.xlsx"}, sideEffects.doneCalls)
}

func TestSideEffectWebhook_UnknownStatus(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	raw, err := json.Marshal(map[string]interface{}{"instance_id": 7, "step_index": 4, "status": "maybe"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook/side-effects", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "hook-secret")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidInstanceID(t *testing.T) {
	server := newTestServer(&stubEngine{}, &stubSideEffectRepo{}, &stubSignatureRepo{})

	rec, _ := doRequest(t, server, http.MethodGet, "/api/v1/workflows/not-a-number", "admin", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
