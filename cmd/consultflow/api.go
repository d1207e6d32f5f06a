package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/consultflow/types"
	"github.com/BaSui01/consultflow/workflow"
)

// api 暴露编排器的最小 JSON 接口。
// 失败阶段以结构化载荷返回，不向边界抛裸错误。
type api struct {
	orchestrator *workflow.Orchestrator
	logger       *zap.Logger
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/clients/{client}/deliverables/{deliverable}", a.generateStage)
	mux.HandleFunc("POST /v1/clients/{client}/framework", a.generateFramework)
	mux.HandleFunc("GET /v1/clients/{client}/workflow", a.workflowStatus)
}

type stageRequest struct {
	Input        map[string]any `json:"input"`
	ExportVisual bool           `json:"export_visual"`
	Format       string         `json:"format"`
	Theme        string         `json:"theme"`
}

func (a *api) generateStage(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client")
	deliverable := workflow.DeliverableType(r.PathValue("deliverable"))

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.orchestrator.GenerateStage(r.Context(), clientID, deliverable, workflow.StageOptions{
		Input:        req.Input,
		ExportVisual: req.ExportVisual,
		Format:       req.Format,
		Theme:        req.Theme,
	})
	if err != nil {
		a.writeStageFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) generateFramework(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client")

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.orchestrator.GenerateCompleteFramework(r.Context(), clientID, workflow.StageOptions{
		Input:        req.Input,
		ExportVisual: req.ExportVisual,
		Format:       req.Format,
		Theme:        req.Theme,
	})
	if err != nil {
		a.writeStageFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) workflowStatus(w http.ResponseWriter, r *http.Request) {
	report, err := a.orchestrator.WorkflowStatus(r.Context(), r.PathValue("client"))
	if err != nil {
		if types.IsCode(err, types.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "status aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) writeStageFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case types.IsCode(err, types.ErrClientNotFound):
		status = http.StatusNotFound
	case types.IsCode(err, types.ErrInvalidInput):
		status = http.StatusBadRequest
	case types.IsCode(err, types.ErrBudgetExceeded):
		status = http.StatusPaymentRequired
	case types.IsCode(err, types.ErrTransportFailure):
		status = http.StatusBadGateway
	}

	a.logger.Warn("stage generation failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeJSON(w, status, workflow.AsStagePayload(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
