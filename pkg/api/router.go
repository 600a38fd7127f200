// Package api 定价服务的 HTTP 接入层
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hestonq.com/pkg/logger"
	"hestonq.com/pkg/pricing"
	"hestonq.com/pkg/risk"
)

// Config 路由配置
type Config struct {
	// 单个请求的超时，0 表示不限制
	RequestTimeout time.Duration

	// HTTP 指标，为空时不记录
	Observer HTTPObserver

	// /metrics 端点，为空时不注册
	MetricsHandler http.Handler
	MetricsPath    string
}

// Handler HTTP 处理器
type Handler struct {
	pricer pricing.Pricer
}

// NewRouter 创建 gin 引擎并注册全部路由
func NewRouter(pricer pricing.Pricer, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(cfg.Observer), recovery(), cors(), timeout(cfg.RequestTimeout))

	h := &Handler{pricer: pricer}
	h.RegisterRoutes(r)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}
	return r
}

// RegisterRoutes 注册定价相关路由
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/simulate", h.Simulate)
	r.POST("/greeks", h.Sensitivities)
	r.POST("/quantum-metrics", h.EstimateResources)
	r.POST("/greeks-term-structure", h.TermStructure)
}

// Simulate 蒙特卡洛定价
// 查询参数: seed 固定随机种子; summary=true 不返回路径和终值分布
func (h *Handler) Simulate(c *gin.Context) {
	params, ok := bindParams(c)
	if !ok {
		return
	}

	req := pricing.SimulationRequest{
		RequestID: logger.RequestID(c.Request.Context()),
		Params:    params,
	}
	if raw, ok := c.GetQuery("seed"); ok {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "seed must be an unsigned integer", "field": "seed"})
			return
		}
		req.Seed = &seed
	}
	req.SummaryOnly = c.Query("summary") == "true"

	report, err := h.pricer.Simulate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.SummaryOnly {
		report.Paths = nil
		report.FinalPrices = nil
	}
	c.JSON(http.StatusOK, report)
}

// Sensitivities 五个 Greeks
func (h *Handler) Sensitivities(c *gin.Context) {
	params, ok := bindParams(c)
	if !ok {
		return
	}
	greeks, err := h.pricer.Sensitivities(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, greeks)
}

// EstimateResources 量子振幅估计资源
func (h *Handler) EstimateResources(c *gin.Context) {
	params, ok := bindParams(c)
	if !ok {
		return
	}
	est, err := h.pricer.EstimateResources(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// TermStructure Greeks 期限结构
func (h *Handler) TermStructure(c *gin.Context) {
	params, ok := bindParams(c)
	if !ok {
		return
	}
	points, err := h.pricer.TermStructure(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func bindParams(c *gin.Context) (risk.ModelParameters, bool) {
	var p risk.ModelParameters
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return risk.ModelParameters{}, false
	}
	return p, true
}

// writeError 按错误类型映射状态码
func writeError(c *gin.Context, err error) {
	var verr *risk.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, pricing.ErrLimitExceeded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		logger.Error(c.Request.Context(), "request failed",
			slog.String("path", c.Request.URL.Path), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
