package app

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"count-words/archive"
	"count-words/config"
	"count-words/search"
)

//go:embed templates/index.html
var templateFS embed.FS

// multipart overhead allowed on top of the archive itself
const formOverhead = 1 << 20

// Server is the web front end: an upload form plus a JSON endpoint
type Server struct {
	engine    *search.Engine
	logger    *log.Logger
	maxUpload int64
	router    *gin.Engine
}

// resultLine is one rendered report line
type resultLine struct {
	Text   string
	Failed bool
}

type pageData struct {
	Version     string
	MaxUploadMB int
	Word        string
	Archive     string
	Error       string
	Notice      string
	Total       string
	Lines       []resultLine
	Elapsed     string
}

type apiFile struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type apiResponse struct {
	Archive    string    `json:"archive"`
	Word       string    `json:"word"`
	Total      int       `json:"total"`
	Files      []apiFile `json:"files"`
	Folders    []string  `json:"folders"`
	Duplicates int       `json:"duplicates"`
	Notice     string    `json:"notice,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	Lines      []string  `json:"lines"`
}

// NewServer builds the router. The engine is shared by all requests.
func NewServer(engine *search.Engine, settings config.Settings, logger *log.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		engine:    engine,
		logger:    logger,
		maxUpload: settings.MaxUploadBytes(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = s.maxUpload
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.index)
	r.POST("/search", s.searchPage)
	r.POST("/api/search", s.searchAPI)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router = r
	return s, nil
}

// Handler exposes the router for http.Server and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).Round(time.Millisecond),
		)
	}
}

func (s *Server) page() pageData {
	return pageData{Version: version, MaxUploadMB: int(s.maxUpload >> 20)}
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.page())
}

func (s *Server) searchPage(c *gin.Context) {
	data := s.page()
	report, err := s.runUpload(c)
	data.Word = c.PostForm("word")
	if report != nil {
		data.Archive = report.ArchiveName
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusOK {
			data.Notice = messageFor(err)
		} else {
			data.Error = messageFor(err)
		}
		c.HTML(status, "index.html", data)
		return
	}

	lines := report.Lines()
	data.Total = lines[0]
	for i, rec := range report.Result.Records {
		data.Lines = append(data.Lines, resultLine{Text: lines[i+1], Failed: rec.Failed()})
	}
	if len(data.Lines) == 0 {
		data.Notice = "The archive holds no pdf, txt, csv or docx files."
	} else if report.Result.TotalCount == 0 {
		data.Notice = fmt.Sprintf("%q was not found in any document.", report.Term)
	}
	data.Elapsed = report.Elapsed.Round(time.Millisecond).String()
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) searchAPI(c *gin.Context) {
	report, err := s.runUpload(c)
	if err != nil {
		status := statusFor(err)
		if status != http.StatusOK {
			c.JSON(status, gin.H{"error": messageFor(err)})
			return
		}
	}

	resp := apiResponse{
		Word:    c.PostForm("word"),
		Files:   []apiFile{},
		Folders: []string{},
		Lines:   []string{},
	}
	if err != nil {
		resp.Notice = messageFor(err)
	}
	if report != nil {
		resp.Archive = report.ArchiveName
		resp.ElapsedMS = report.Elapsed.Milliseconds()
		if report.Extraction != nil && report.Extraction.Folders != nil {
			resp.Folders = report.Extraction.Folders
		}
		if report.Result != nil {
			resp.Total = report.Result.TotalCount
			resp.Duplicates = len(report.Result.Duplicates)
			resp.Lines = report.Lines()
			for _, rec := range report.Result.Records {
				f := apiFile{Name: rec.Name, Count: rec.Count}
				if rec.Err != nil {
					f.Error = rec.Err.Error()
				}
				resp.Files = append(resp.Files, f)
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// runUpload reads the multipart form and runs the engine on it
func (s *Server) runUpload(c *gin.Context) (*search.Report, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+formOverhead)

	fh, err := c.FormFile("archive")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errUploadTooLarge
		}
		return nil, errMissingUpload
	}
	if fh.Size > s.maxUpload {
		return nil, errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	report, err := s.engine.Run(c.Request.Context(), search.Request{
		ArchiveName: fh.Filename,
		Archive:     f,
		Size:        fh.Size,
		Term:        c.PostForm("word"),
	})
	if err != nil && !errors.Is(err, archive.ErrNoContent) {
		s.logger.Warn("search failed", "archive", fh.Filename, "err", err)
	}
	logUsage(s.logger)
	return report, err
}

var (
	errMissingUpload  = errors.New("no archive uploaded")
	errUploadTooLarge = errors.New("upload too large")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, archive.ErrNoContent):
		return http.StatusOK
	case errors.Is(err, errUploadTooLarge), errors.Is(err, archive.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMissingUpload),
		errors.Is(err, search.ErrEmptyTerm),
		errors.Is(err, config.ErrUnsupportedArchive):
		return http.StatusBadRequest
	case errors.Is(err, archive.ErrCorruptArchive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, archive.ErrNoContent):
		return "The archive contains no files."
	case errors.Is(err, errUploadTooLarge):
		return "The archive is larger than the upload limit."
	case errors.Is(err, archive.ErrTooLarge):
		return "The archive expands to more than the extraction limit."
	case errors.Is(err, errMissingUpload):
		return "Please choose a .zip or .rar archive."
	case errors.Is(err, search.ErrEmptyTerm):
		return "Please enter a search word."
	case errors.Is(err, config.ErrUnsupportedArchive):
		return "Only .zip and .rar archives are supported."
	case errors.Is(err, archive.ErrCorruptArchive):
		return "The archive could not be read; it may be damaged."
	default:
		return "Something went wrong while processing the archive."
	}
}
