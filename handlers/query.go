package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"datalens/charts"
	"datalens/classify"
	"datalens/db"
	"datalens/metrics"
	"datalens/models"
	"datalens/schema"
	"datalens/service"
	"datalens/validation"
)

// QueryHandler answers a natural-language question against a caller-supplied table
// @Summary      Ask a business question against any relational table
// @Description  Classifies the question, compiles it into a structured intent via the language model, and executes it against the table named in the request. May respond with a chart-kind disambiguation prompt that the next request answers.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Param        request  body      models.QueryRequest  true  "Question, table name and connection config"
// @Success      200      {object}  models.QueryResponse
// @Failure      400      {object}  models.QueryResponse
// @Failure      500      {object}  models.QueryResponse
// @Router       /api/query [post]
func (h *Handlers) QueryHandler(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.QueryResponse{Error: "Invalid request"})
		return
	}

	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	log.WithFields(log.Fields{
		"session": sessionID,
		"table":   req.TableName,
		"backend": req.Connection.Kind,
	}).Info("incoming query")

	if !validation.IsValidIdentifier(req.TableName) {
		c.JSON(http.StatusBadRequest, models.QueryResponse{
			Error:     fmt.Sprintf("Invalid table name '%s'", req.TableName),
			SessionID: sessionID,
		})
		return
	}
	if err := validation.ValidateConnection(req.Connection); err != nil {
		c.JSON(http.StatusBadRequest, models.QueryResponse{Error: err.Error(), SessionID: sessionID})
		return
	}

	ctx := c.Request.Context()

	// Verify the caller's connection and table before any model work.
	info, status, failure := h.inspectTable(ctx, req.Connection, req.TableName)
	if failure != nil {
		failure.SessionID = sessionID
		c.JSON(status, *failure)
		return
	}

	// A parked chart context always consumes the next request from its
	// session: the text is read purely as a chart-kind answer.
	if pending, ok := h.sessions.PendingChartContext(sessionID); ok {
		h.handleChartKindResponse(c, sessionID, req.Question, pending)
		return
	}

	if h.gate.IsConversational(ctx, req.Question) {
		metrics.CompletionsTotal.WithLabelValues("chat").Inc()
		reply, err := h.ai.ConversationalReply(ctx, req.Question)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.QueryResponse{
				Error:     "No response from model",
				SessionID: sessionID,
			})
			return
		}
		h.storeExchange(sessionID, req.Question, reply)
		c.JSON(http.StatusOK, models.QueryResponse{
			Message:   reply,
			TableName: req.TableName,
			SessionID: sessionID,
		})
		return
	}

	isChartRequest := classify.DetectChartRequest(req.Question)
	specifiedKind := classify.ParseChartKind(req.Question)

	metrics.CompletionsTotal.WithLabelValues("intent").Inc()
	intent, err := h.ai.CompileIntent(ctx, req.Question, info)
	if err != nil {
		log.WithError(err).WithField("session", sessionID).Warn("intent compilation failed")
		c.JSON(http.StatusInternalServerError, models.QueryResponse{
			Error:     "Model returned invalid format.",
			SessionID: sessionID,
		})
		return
	}

	chartType := intent.ChartType
	if chartType == "" {
		chartType = specifiedKind
	}

	// A chart was asked for without a kind, and the intent already has the
	// grouping and projection a chart needs: park it and ask the caller.
	if isChartRequest && chartType == "" && len(intent.GroupBy) > 0 && len(intent.Projections) > 0 {
		h.sessions.SetPendingChartContext(sessionID, &models.PendingChartContext{
			Connection: req.Connection,
			TableName:  req.TableName,
			Intent:     *intent,
		})
		c.JSON(http.StatusOK, models.QueryResponse{
			Message:           "What type of chart would you like to see?",
			Options:           classify.ChartKinds(),
			AwaitingChartType: true,
			TableName:         req.TableName,
			SessionID:         sessionID,
		})
		return
	}

	resp, status := h.processQuery(ctx, req.Connection, req.TableName, intent, chartType)
	resp.SessionID = sessionID
	h.storeQueryOutcome(sessionID, req.Question, &resp)
	c.JSON(status, resp)
}

// handleChartKindResponse resumes a parked intent. The state machine returns
// to idle as soon as a valid kind is named, even if the replayed execution
// then fails; only an unrecognized kind keeps the context parked.
func (h *Handlers) handleChartKindResponse(c *gin.Context, sessionID, text string, pending *models.PendingChartContext) {
	kind := classify.ParseChartKind(text)
	if kind == "" {
		c.JSON(http.StatusOK, models.QueryResponse{
			Message:           "Please specify a valid chart type.",
			Options:           classify.ChartKinds(),
			AwaitingChartType: true,
			TableName:         pending.TableName,
			SessionID:         sessionID,
		})
		return
	}

	h.sessions.ClearPendingChartContext(sessionID)

	resp, status := h.processQuery(c.Request.Context(), pending.Connection, pending.TableName, &pending.Intent, kind)
	resp.SessionID = sessionID
	h.storeQueryOutcome(sessionID, text, &resp)
	c.JSON(status, resp)
}

// inspectTable opens a connection just long enough to confirm the table
// exists and read its live schema.
func (h *Handlers) inspectTable(ctx context.Context, cfg models.ConnectionConfig, tableName string) (*models.SchemaInfo, int, *models.QueryResponse) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, http.StatusBadRequest, &models.QueryResponse{
			Error: fmt.Sprintf("Database connection failed: %v", err),
		}
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return nil, http.StatusBadRequest, &models.QueryResponse{
			Error: fmt.Sprintf("Database connection failed: %v", err),
		}
	}

	info, err := schema.Inspect(ctx, conn, cfg.Kind, tableName)
	if err != nil {
		log.WithError(err).Error("schema inspection failed")
		return nil, http.StatusInternalServerError, &models.QueryResponse{
			Error:   "Database connection or query failed",
			Details: err.Error(),
		}
	}
	if info == nil {
		return nil, http.StatusBadRequest, &models.QueryResponse{
			Error: fmt.Sprintf("Could not retrieve schema for table '%s' or table does not exist", tableName),
		}
	}
	return info, http.StatusOK, nil
}

// processQuery opens its own connection, executes the intent, and renders a
// chart when one was requested. The connection is released on every path.
func (h *Handlers) processQuery(ctx context.Context, cfg models.ConnectionConfig, tableName string, intent *models.QueryIntent, chartType string) (models.QueryResponse, int) {
	conn, err := db.Open(cfg)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("caller_error").Inc()
		return models.QueryResponse{Error: fmt.Sprintf("Database connection failed: %v", err)}, http.StatusBadRequest
	}
	defer conn.Close()

	info, err := schema.Inspect(ctx, conn, cfg.Kind, tableName)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("internal_error").Inc()
		log.WithError(err).Error("schema inspection failed")
		return models.QueryResponse{Error: "Database connection or query failed", Details: err.Error()}, http.StatusInternalServerError
	}
	if info == nil {
		metrics.QueriesTotal.WithLabelValues("caller_error").Inc()
		return models.QueryResponse{
			Error: fmt.Sprintf("Could not retrieve schema for table '%s' or table does not exist", tableName),
		}, http.StatusBadRequest
	}

	executor := service.NewExecutor(conn, cfg.Kind, info)

	rows, err := executor.Execute(ctx, intent)
	if err != nil {
		if errors.Is(err, service.ErrNoDerivedMetric) || errors.Is(err, service.ErrColumnNotFound) {
			metrics.QueriesTotal.WithLabelValues("caller_error").Inc()
			return models.QueryResponse{Error: err.Error()}, http.StatusBadRequest
		}
		metrics.QueriesTotal.WithLabelValues("internal_error").Inc()
		log.WithError(err).WithField("table", tableName).Error("query execution failed")
		return models.QueryResponse{Error: "Database connection or query failed", Details: err.Error()}, http.StatusInternalServerError
	}
	metrics.QueriesTotal.WithLabelValues("ok").Inc()

	if chartType != "" && len(intent.GroupBy) > 0 && len(intent.Projections) > 0 {
		return h.renderChartResponse(ctx, executor, intent, chartType, tableName, rows), http.StatusOK
	}

	return models.QueryResponse{Result: rows, TableName: tableName}, http.StatusOK
}

// renderChartResponse attaches a rendered chart to the rows. Chart failures
// are never fatal: the tabular result is returned with an explanation.
func (h *Handlers) renderChartResponse(ctx context.Context, executor *service.Executor, intent *models.QueryIntent, chartType, tableName string, rows []models.ResultRow) models.QueryResponse {
	points, err := executor.ChartData(ctx, intent)
	if err != nil {
		metrics.ChartRendersTotal.WithLabelValues(chartType, "failed").Inc()
		log.WithError(err).Warn("chart data query failed")
		return models.QueryResponse{
			Message:   "I found the data, but couldn't generate the chart. Here's the data instead:",
			Result:    rows,
			Error:     fmt.Sprintf("Chart error: %v", err),
			TableName: tableName,
		}
	}

	encoded, err := charts.Render(chartType, points)
	if err != nil {
		metrics.ChartRendersTotal.WithLabelValues(chartType, "failed").Inc()
		log.WithError(err).Warn("chart rendering failed")
		return models.QueryResponse{
			Message:   "Generated the data, but chart creation failed:",
			Result:    rows,
			TableName: tableName,
		}
	}

	metrics.ChartRendersTotal.WithLabelValues(chartType, "ok").Inc()
	return models.QueryResponse{
		Message:   fmt.Sprintf("Here's your %s chart with the data:", chartType),
		Chart:     encoded,
		Data:      rows,
		TableName: tableName,
	}
}

func (h *Handlers) storeExchange(sessionID, question, response string) {
	if err := h.history.StoreExchange(sessionID, question, response); err != nil {
		log.WithError(err).Warn("failed to store chat history")
	}
}

func (h *Handlers) storeQueryOutcome(sessionID, question string, resp *models.QueryResponse) {
	summary := resp.Message
	if summary == "" {
		if resp.Error != "" {
			summary = resp.Error
		} else {
			summary = fmt.Sprintf("Returned %d rows from table '%s'", len(resp.Result), resp.TableName)
		}
	}
	h.storeExchange(sessionID, question, summary)
}
