package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/submission"
)

type (
	// Repository is the server-side persistence of the content tree and its
	// submissions; implemented by storage/boltdb and storage/postgres.
	Repository interface {
		GetTree(subjectID string) ([]content.Section, error)
		GetSection(id string) (content.Section, error)
		CreateSection(subjectID string, sec content.Section) (content.Section, error)
		UpdateSection(id string, us content.UpdateSection) (content.Section, error)
		DeleteSection(id string) error
		ReorderSections(subjectID string, orderedIDs []string) error
		CreateItem(sectionID string, it content.Item) (content.Item, error)
		UpdateItem(id string, ui content.UpdateItem) (content.Item, error)
		DeleteItem(id string) error
		ReorderItems(sectionID string, orderedIDs []string) error
		GetItem(id string) (content.Item, error)
		ListSubmissions(itemID string) ([]submission.Submission, error)
		CreateSubmission(sub submission.Submission) (submission.Submission, error)
		GetSubmission(id string) (submission.Submission, error)
		SetSubmissionStatus(id string, status submission.Status, note *string) error
		DeleteSubmission(id string) error
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Repo       Repository
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	debug := s.deps.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !debug {
		s.app.Use(middleware.Logger())
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1", viewerMiddleware())
	registerTreeAPI(v1, s.deps)
	registerSubmissionAPI(v1, s.deps)
}

func (s *Server) Start() {
	s.errors <- s.app.Start(s.deps.Conf.Server.Address())
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown initiates a graceful stop; called by the error handler when
// an unrecoverable error is caught.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
