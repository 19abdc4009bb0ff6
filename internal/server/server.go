// Package server 提供 web 表单与 JSON API：上传 cause list 与工作簿，返回命中行。
//
// 每个请求都是一次独立、无状态的 run；服务端不保存上传内容。
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/John-Robertt/causematch/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Server 是 causematch 的 HTTP 服务。
type Server struct {
	echo    *echo.Echo
	eff     config.EffectiveConfig
	logger  *zap.Logger
	metrics *Metrics

	// HTTPClient 用于 board 抓取；为空时由 run 按 proxy.url 构造。
	HTTPClient *http.Client
}

// New 创建服务并注册路由。
func New(eff config.EffectiveConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger 不能为空")
	}
	if eff.MaxUploadMB < 1 {
		eff.MaxUploadMB = config.DefaultMaxUploadMB
	}
	if eff.Addr == "" {
		eff.Addr = config.DefaultAddr
	}
	// web 请求的结果只回给请求方，不落盘。
	eff.Out = ""

	r, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("加载页面模板失败：%w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = r

	s := &Server{
		echo:    e,
		eff:     eff,
		logger:  logger,
		metrics: NewMetrics(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// 先让 echo 写出错误响应，日志里的 status 才准确。
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", eff.MaxUploadMB)))

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.POST("/match", s.handleMatchForm)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", s.metrics.Handler())

	v1 := s.echo.Group("/api/v1")
	v1.POST("/extract", s.handleExtract)
	v1.POST("/match", s.handleMatchAPI)
}

// Handler 返回根 http.Handler（测试用 httptest 直接驱动）。
func (s *Server) Handler() http.Handler { return s.echo }

// Start 在 eff.Addr 上监听，直到 Shutdown。
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.eff.Addr), zap.Int("max_upload_mb", s.eff.MaxUploadMB))
	err := s.echo.Start(s.eff.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown 优雅关闭。
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Run 启动服务并在 ctx 结束时优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			return err
		}
		return <-errCh
	}
}
