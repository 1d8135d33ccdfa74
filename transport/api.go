package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/houzhh15/zt-core/engine"
	"github.com/houzhh15/zt-core/firewall"
	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/policy"
	"github.com/houzhh15/zt-core/protocol"
	"github.com/houzhh15/zt-core/session"
	"github.com/houzhh15/zt-core/trust"
)

// API 网关管理面 REST 接口
// 规则增删查、包决策、访问评估、会话查询与指标暴露
type API struct {
	gateway *engine.Gateway
	store   *firewall.RuleStore
	monitor *session.Monitor
	logger  logging.Logger
}

// APIConfig 接口依赖配置
type APIConfig struct {
	Gateway *engine.Gateway
	Store   *firewall.RuleStore
	Monitor *session.Monitor
	Logger  logging.Logger
}

// NewAPI 创建管理面接口
func NewAPI(cfg *APIConfig) *API {
	a := &API{}
	if cfg != nil {
		a.gateway = cfg.Gateway
		a.store = cfg.Store
		a.monitor = cfg.Monitor
		a.logger = cfg.Logger
	}
	if a.logger == nil {
		a.logger = logging.Nop()
	}
	return a
}

// Handler 构建路由
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/rules", a.handleListRules)
	mux.HandleFunc("POST /api/v1/rules", a.handleAddRule)
	mux.HandleFunc("DELETE /api/v1/rules/{id}", a.handleRemoveRule)

	mux.HandleFunc("POST /api/v1/packets/inspect", a.handleInspectPacket)
	mux.HandleFunc("POST /api/v1/access/evaluate", a.handleEvaluateAccess)

	mux.HandleFunc("GET /api/v1/sessions/{id}", a.handleCheckSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/end", a.handleEndSession)

	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": a.store.Rules(),
		"dirty": a.store.Dirty(),
	})
}

func (a *API) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var rule firewall.PacketRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, protocol.NewError(protocol.ErrCodeInvalidRequest, "invalid rule payload"))
		return
	}

	if err := a.store.AddRule(&rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &rule)
}

func (a *API) handleRemoveRule(w http.ResponseWriter, r *http.Request) {
	if err := a.store.RemoveRule(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// inspectRequest 包决策请求体
type inspectRequest struct {
	SessionID string           `json:"session_id,omitempty"`
	Context   *trust.Context   `json:"context,omitempty"`
	Packet    *firewall.Packet `json:"packet"`
	Bytes     int64            `json:"bytes,omitempty"`
}

func (a *API) handleInspectPacket(w http.ResponseWriter, r *http.Request) {
	var req inspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Packet == nil {
		writeError(w, protocol.NewError(protocol.ErrCodeInvalidRequest, "packet is required"))
		return
	}

	result, err := a.gateway.ProcessPacket(&engine.PacketRequest{
		SessionID: req.SessionID,
		Context:   req.Context,
		Packet:    req.Packet,
		Bytes:     req.Bytes,
	})
	if err != nil {
		writeError(w, protocol.WrapError(protocol.ErrCodeInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// accessRequest 访问评估请求体
type accessRequest struct {
	Context  *trust.Context   `json:"context"`
	Resource *policy.Resource `json:"resource,omitempty"`
}

func (a *API) handleEvaluateAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Context == nil {
		writeError(w, protocol.NewError(protocol.ErrCodeInvalidRequest, "context is required"))
		return
	}

	result, err := a.gateway.EvaluateAccess(req.Context, req.Resource)
	if err != nil {
		writeError(w, protocol.WrapError(protocol.ErrCodeInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	snap := a.monitor.CheckSession(r.PathValue("id"))
	if snap.Status == session.StatusNotFound {
		writeError(w, protocol.NewError(protocol.ErrCodeSessionNotFound,
			"session not found").WithDetails("session_id", snap.SessionID))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a.monitor.EndSession(id)
	writeJSON(w, http.StatusOK, a.monitor.CheckSession(id))
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError 将协议错误映射为 HTTP 状态码并输出错误体
func writeError(w http.ResponseWriter, err error) {
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		perr = protocol.WrapError(protocol.ErrCodeInternal, err)
	}

	status := http.StatusInternalServerError
	switch perr.Code {
	case protocol.ErrCodeInvalidRequest, protocol.ErrCodeInvalidRule:
		status = http.StatusBadRequest
	case protocol.ErrCodeNotFound, protocol.ErrCodeRuleNotFound, protocol.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case protocol.ErrCodeDuplicateRule:
		status = http.StatusConflict
	}

	writeJSON(w, status, perr)
}
