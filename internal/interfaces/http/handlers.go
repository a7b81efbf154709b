package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nordstift/foundation-console/internal/application/port"
	appworkflow "github.com/nordstift/foundation-console/internal/application/workflow"
	"github.com/nordstift/foundation-console/internal/domain/authz"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	authz       *authz.Engine
	engine      appworkflow.Engine
	chain       *appworkflow.ApprovalChain
	sideEffects port.SideEffectRepository
	signatures  port.SignatureRepository
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	authzEngine *authz.Engine,
	engine appworkflow.Engine,
	chain *appworkflow.ApprovalChain,
	sideEffects port.SideEffectRepository,
	signatures port.SignatureRepository,
	logger Logger,
) *Handlers {
	return &Handlers{
		authz:       authzEngine,
		engine:      engine,
		chain:       chain,
		sideEffects: sideEffects,
		signatures:  signatures,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Reasons []Reason    `json:"reasons,omitempty"`
}

// Reason is one machine-readable denial reason
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// NavigationResponse lists what the acting role may see
type NavigationResponse struct {
	Role         string   `json:"role"`
	Screens      []string `json:"screens"`
	DefaultRoute string   `json:"default_route"`
}

// InstanceResponse represents a workflow instance in API responses
type InstanceResponse struct {
	ID          int64                  `json:"id"`
	Kind        string                 `json:"kind"`
	CurrentStep int                    `json:"current_step"`
	Version     int64                  `json:"version"`
	Status      string                 `json:"status"`
	Data        map[string]interface{} `json:"data"`
	History     []StepResultResponse   `json:"history,omitempty"`
	SideEffects []SideEffectResponse   `json:"side_effects,omitempty"`
	Signatures  []SignatureResponse    `json:"signatures,omitempty"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
}

// StepResultResponse is one entry of the audit trail
type StepResultResponse struct {
	StepIndex int      `json:"step_index"`
	Outcome   string   `json:"outcome"`
	Reasons   []Reason `json:"reasons,omitempty"`
	DecidedBy string   `json:"decided_by,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// SideEffectResponse is one recorded side effect
type SideEffectResponse struct {
	StepIndex   int      `json:"step_index"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Attempts    int      `json:"attempts"`
	Error       string   `json:"error,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// SignatureResponse is one collected signature
type SignatureResponse struct {
	StepIndex int    `json:"step_index"`
	SignerID  string `json:"signer_id"`
	Method    string `json:"method"`
	SignedAt  string `json:"signed_at"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// Navigation handles GET /api/v1/me/navigation. Unknown roles get an
// empty screen list and the fallback route, never an error.
func (h *Handlers) Navigation(c *gin.Context) {
	role := authz.Role(c.GetHeader(HeaderActingRole))

	screens := h.authz.PermittedScreens(role)
	names := make([]string, 0, len(screens))
	for _, screen := range screens {
		names = append(names, screen.String())
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: NavigationResponse{
			Role:         role.String(),
			Screens:      names,
			DefaultRoute: h.authz.DefaultRoute(role).String(),
		},
	})
}

// StartWorkflowRequest is the body of POST /api/v1/workflows
type StartWorkflowRequest struct {
	Kind string                 `json:"kind" binding:"required"`
	Data map[string]interface{} `json:"data"`
}

// StartWorkflow handles POST /api/v1/workflows
func (h *Handlers) StartWorkflow(c *gin.Context) {
	var req StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	kind := workflow.Kind(req.Kind)
	if !h.authorizeKind(c, kind) {
		return
	}

	instance, err := h.engine.Start(c.Request.Context(), kind, req.Data)
	if err != nil {
		h.renderError(c, nil, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toInstanceResponse(instance),
	})
}

// GetWorkflow handles GET /api/v1/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	instance, err := h.engine.Resume(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, nil, err)
		return
	}
	if !h.authorizeKind(c, instance.Kind) {
		return
	}

	sigs, err := h.signatures.GetByInstanceID(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, nil, err)
		return
	}
	instance.Signatures = sigs

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInstanceResponse(instance),
	})
}

// AdvanceWorkflowRequest is the body of POST /api/v1/workflows/:id/advance
type AdvanceWorkflowRequest struct {
	ExpectedVersion int64                  `json:"expected_version" binding:"required"`
	Input           map[string]interface{} `json:"input"`
}

// AdvanceWorkflow handles POST /api/v1/workflows/:id/advance
func (h *Handlers) AdvanceWorkflow(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req AdvanceWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if !h.authorizeInstance(c, id) {
		return
	}

	instance, err := h.engine.Advance(c.Request.Context(), id, req.ExpectedVersion, req.Input)
	if err != nil {
		h.renderError(c, instance, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInstanceResponse(instance),
	})
}

// RejectWorkflowRequest is the body of POST /api/v1/workflows/:id/reject
type RejectWorkflowRequest struct {
	ExpectedVersion int64  `json:"expected_version" binding:"required"`
	Reason          string `json:"reason"`
}

// RejectWorkflow handles POST /api/v1/workflows/:id/reject
func (h *Handlers) RejectWorkflow(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req RejectWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if !h.authorizeInstance(c, id) {
		return
	}

	instance, err := h.engine.Reject(c.Request.Context(), id, req.ExpectedVersion, actingUser(c), req.Reason)
	if err != nil {
		h.renderError(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInstanceResponse(instance),
	})
}

// RetreatWorkflowRequest is the body of POST /api/v1/workflows/:id/retreat
type RetreatWorkflowRequest struct {
	ExpectedVersion int64 `json:"expected_version" binding:"required"`
}

// RetreatWorkflow handles POST /api/v1/workflows/:id/retreat
func (h *Handlers) RetreatWorkflow(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req RetreatWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if !h.authorizeInstance(c, id) {
		return
	}

	instance, err := h.engine.Retreat(c.Request.Context(), id, req.ExpectedVersion)
	if err != nil {
		h.renderError(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInstanceResponse(instance),
	})
}

// RetrySideEffect handles POST /api/v1/workflows/:id/side-effects/:step/retry
func (h *Handlers) RetrySideEffect(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid step index"})
		return
	}

	if !h.authorizeInstance(c, id) {
		return
	}

	record, err := h.engine.RetrySideEffect(c.Request.Context(), id, step)
	if err != nil {
		h.renderError(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toSideEffectResponse(*record),
	})
}

// DecideRequest is the body of POST /api/v1/approvals/:id/decisions
type DecideRequest struct {
	ExpectedVersion int64  `json:"expected_version" binding:"required"`
	StepIndex       int    `json:"step_index" binding:"required"`
	Decision        string `json:"decision" binding:"required"`
	Comment         string `json:"comment"`
}

// Decide handles POST /api/v1/approvals/:id/decisions
func (h *Handlers) Decide(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if !h.authorizeInstance(c, id) {
		return
	}

	instance, err := h.chain.Decide(
		c.Request.Context(),
		id,
		req.ExpectedVersion,
		req.StepIndex,
		actingUser(c),
		workflow.Decision(req.Decision),
		req.Comment,
	)
	if err != nil {
		h.renderError(c, instance, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInstanceResponse(instance),
	})
}

// SideEffectWebhookRequest is the external provider's callback body
type SideEffectWebhookRequest struct {
	InstanceID  int64    `json:"instance_id" binding:"required"`
	StepIndex   int      `json:"step_index" binding:"required"`
	Status      string   `json:"status" binding:"required"`
	DocumentIDs []string `json:"document_ids"`
	Error       string   `json:"error"`
}

// SideEffectWebhook handles POST /webhook/side-effects. The external
// provider reports completion or failure of asynchronous document
// runs, which the handler records against the owning step.
func (h *Handlers) SideEffectWebhook(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && c.GetHeader("X-Webhook-Secret") != secret {
			c.JSON(http.StatusForbidden, Response{Success: false, Error: "invalid webhook secret"})
			return
		}

		var req SideEffectWebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
			return
		}

		var err error
		switch req.Status {
		case "done":
			err = h.sideEffects.MarkDone(c.Request.Context(), req.InstanceID, req.StepIndex, req.DocumentIDs)
		case "failed":
			err = h.sideEffects.MarkFailed(c.Request.Context(), req.InstanceID, req.StepIndex, req.Error)
		default:
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown status " + req.Status})
			return
		}
		if err != nil {
			h.renderError(c, nil, err)
			return
		}

		c.JSON(http.StatusOK, Response{Success: true})
	}
}

// authorizeKind checks that the acting role holds the screen behind
// the given workflow kind. On denial a 403 is written and false
// returned.
func (h *Handlers) authorizeKind(c *gin.Context, kind workflow.Kind) bool {
	role := actingRole(c)
	if h.authz.IsPermitted(role, screenForKind(kind)) {
		return true
	}
	c.JSON(http.StatusForbidden, Response{
		Success: false,
		Error:   "role " + role.String() + " is not permitted to act on " + kind.String() + " workflows",
	})
	return false
}

// authorizeInstance loads the instance to learn its kind and then
// applies the same per-kind check as authorizeKind.
func (h *Handlers) authorizeInstance(c *gin.Context, id int64) bool {
	instance, err := h.engine.Resume(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, nil, err)
		return false
	}
	return h.authorizeKind(c, instance.Kind)
}

// instanceID parses the :id path parameter
func (h *Handlers) instanceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid instance ID"})
		return 0, false
	}
	return id, true
}

// renderError maps domain errors to HTTP status codes. The instance,
// when present, is included so clients see the state the transition
// left behind.
func (h *Handlers) renderError(c *gin.Context, instance *workflow.Instance, err error) {
	var valErr *workflow.ValidationError
	var stale *workflow.StaleInstanceError
	var illegal *workflow.IllegalTransitionError

	resp := Response{Success: false, Error: err.Error()}
	if instance != nil {
		resp.Data = toInstanceResponse(instance)
	}

	switch {
	case errors.As(err, &valErr):
		resp.Reasons = toReasons(workflow.ReasonsFromChecks(valErr.Checks))
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.As(err, &stale):
		c.JSON(http.StatusConflict, resp)
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, workflow.ErrStepOutOfRange):
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, workflow.ErrSignatureDeclined):
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, workflow.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, resp)
	case errors.Is(err, workflow.ErrNotAssignee):
		c.JSON(http.StatusForbidden, resp)
	default:
		h.logger.Error("Request failed", "error", err)
		resp.Error = "internal error"
		c.JSON(http.StatusInternalServerError, resp)
	}
}

// toInstanceResponse converts a domain instance to the API shape
func toInstanceResponse(instance *workflow.Instance) InstanceResponse {
	resp := InstanceResponse{
		ID:          instance.ID,
		Kind:        instance.Kind.String(),
		CurrentStep: instance.CurrentStep,
		Version:     instance.Version,
		Status:      instance.Status.String(),
		Data:        instance.Data,
		CreatedAt:   instance.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   instance.UpdatedAt.Format(time.RFC3339),
	}

	for _, r := range instance.History {
		resp.History = append(resp.History, StepResultResponse{
			StepIndex: r.StepIndex,
			Outcome:   string(r.Outcome),
			Reasons:   toReasons(r.Reasons),
			DecidedBy: r.DecidedBy,
			Timestamp: r.Timestamp.Format(time.RFC3339),
		})
	}
	for _, se := range instance.SideEffects {
		resp.SideEffects = append(resp.SideEffects, toSideEffectResponse(se))
	}
	for _, sig := range instance.Signatures {
		resp.Signatures = append(resp.Signatures, SignatureResponse{
			StepIndex: sig.StepIndex,
			SignerID:  sig.SignerID,
			Method:    sig.Method,
			SignedAt:  sig.SignedAt.Format(time.RFC3339),
		})
	}

	return resp
}

func toSideEffectResponse(se workflow.SideEffectRecord) SideEffectResponse {
	return SideEffectResponse{
		StepIndex:   se.StepIndex,
		Kind:        string(se.Kind),
		Status:      string(se.Status),
		Attempts:    se.Attempts,
		Error:       se.Error,
		DocumentIDs: se.DocumentIDs,
	}
}

func toReasons(reasons []workflow.Reason) []Reason {
	out := make([]Reason, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, Reason{Code: r.Code, Message: r.Message})
	}
	return out
}
