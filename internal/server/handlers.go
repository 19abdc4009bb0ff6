package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/John-Robertt/causematch/internal/app/run"
	"github.com/John-Robertt/causematch/internal/causelist"
	"github.com/John-Robertt/causematch/internal/domain"
	"github.com/John-Robertt/causematch/internal/export"
)

const msgNoInput = "No input provided."

// HealthResponse 是 GET /health 的响应体。
type HealthResponse struct {
	Status string `json:"status"`
}

// ExtractRequest 是 POST /api/v1/extract 的请求体。
// KeepBrackets / KeepArising 为空时沿用服务配置。
type ExtractRequest struct {
	Text         string `json:"text"`
	KeepBrackets *bool  `json:"keep_brackets,omitempty"`
	KeepArising  *bool  `json:"keep_arising,omitempty"`
}

// ExtractResponse 是 POST /api/v1/extract 的响应体。
type ExtractResponse struct {
	Cases []string `json:"cases"`
}

type pageData struct {
	Text     string
	BoardURL string
	Message  string

	Ran     bool
	Report  domain.RunReport
	Columns []string
	Rows    [][]string
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", pageData{BoardURL: s.eff.BoardURL})
}

func (s *Server) handleExtract(c echo.Context) error {
	var req ExtractRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid extract request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	eff := s.eff
	if req.KeepBrackets != nil {
		eff.KeepBrackets = *req.KeepBrackets
	}
	if req.KeepArising != nil {
		eff.KeepArising = *req.KeepArising
	}
	ids := causelist.ExtractWith(req.Text, run.ExtractOptions(eff))
	s.metrics.observeExtract(len(ids))
	return c.JSON(http.StatusOK, ExtractResponse{Cases: domain.Strings(ids)})
}

func (s *Server) handleMatchAPI(c echo.Context) error {
	in, err := s.readInput(c)
	if err != nil {
		return err
	}
	res := s.execute(c, in)
	return c.JSON(http.StatusOK, res.Report)
}

func (s *Server) handleMatchForm(c echo.Context) error {
	in, err := s.readInput(c)
	if err != nil {
		return err
	}
	data := pageData{
		Text:     c.FormValue("text"),
		BoardURL: strings.TrimSpace(c.FormValue("board_url")),
	}
	if !in.HasCauseList() || !in.HasWorkbook() {
		data.Message = msgNoInput
		return c.Render(http.StatusOK, "index.html", data)
	}

	res := s.execute(c, in)
	if c.QueryParam("format") == "csv" {
		c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.FileName))
		c.Response().WriteHeader(http.StatusOK)
		return export.WriteCSV(c.Response(), res.Matches)
	}

	data.Ran = true
	data.Report = res.Report
	data.Columns = export.Header(res.Matches)
	last := len(data.Columns) - 1
	for _, m := range res.Matches {
		row := make([]string, len(data.Columns))
		for j, col := range data.Columns[:last] {
			row[j] = m.Row[col].Text()
		}
		row[last] = m.Sheet
		data.Rows = append(data.Rows, row)
	}
	return c.Render(http.StatusOK, "index.html", data)
}

func (s *Server) execute(c echo.Context, in run.Input) run.Result {
	log := s.logger.With(zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
	res := run.ExecuteWith(c.Request().Context(), s.eff, in, run.Deps{Log: log, HTTP: s.HTTPClient})
	s.metrics.observeRun(res.Report)
	return res
}

// readInput 从 multipart 表单读取输入：causelist（文件）、text、board_url、workbook（可多个）。
func (s *Server) readInput(c echo.Context) (run.Input, error) {
	form, err := c.MultipartForm()
	if err != nil {
		s.logger.Warn("invalid multipart form", zap.Error(err))
		return run.Input{}, echo.NewHTTPError(http.StatusBadRequest, "expected multipart/form-data")
	}

	var in run.Input
	for _, fh := range form.File["causelist"] {
		doc, err := readPart(fh)
		if err != nil {
			return run.Input{}, err
		}
		in.CaseDocs = append(in.CaseDocs, doc)
	}
	if text := c.FormValue("text"); strings.TrimSpace(text) != "" {
		in.CaseDocs = append(in.CaseDocs, run.Document{Name: "pasted text", Data: []byte(text)})
	}
	in.BoardURL = strings.TrimSpace(c.FormValue("board_url"))
	if in.BoardURL != "" {
		if err := allowedBoardURL(s.eff.BoardURL, in.BoardURL); err != nil {
			s.logger.Warn("rejected board_url", zap.String("board_url", in.BoardURL), zap.Error(err))
			return run.Input{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	for _, fh := range form.File["workbook"] {
		doc, err := readPart(fh)
		if err != nil {
			return run.Input{}, err
		}
		in.WorkbookDocs = append(in.WorkbookDocs, doc)
	}
	return in, nil
}

// allowedBoardURL 只放行与配置的 board.url 同 host 的地址；服务端不代替提交者抓取任意 URL。
func allowedBoardURL(configured, raw string) error {
	if strings.TrimSpace(configured) == "" {
		return errors.New("board_url is not accepted: no board.url configured")
	}
	want, err := url.Parse(strings.TrimSpace(configured))
	if err != nil {
		return fmt.Errorf("configured board.url is invalid: %w", err)
	}
	got, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid board_url: %w", err)
	}
	if got.Scheme != "http" && got.Scheme != "https" {
		return fmt.Errorf("board_url must be http(s), got %q", got.Scheme)
	}
	if !strings.EqualFold(got.Host, want.Host) {
		return fmt.Errorf("board_url host must be %s", want.Host)
	}
	return nil
}

func readPart(fh *multipart.FileHeader) (run.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return run.Document{}, echo.NewHTTPError(http.StatusBadRequest, "cannot read upload "+fh.Filename)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return run.Document{}, echo.NewHTTPError(http.StatusBadRequest, "cannot read upload "+fh.Filename)
	}
	return run.Document{Name: fh.Filename, Data: b}, nil
}
