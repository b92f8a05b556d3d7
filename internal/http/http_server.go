package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/core/services/submit"
	"gitlab.com/baseline-2025.net/internal/core/services/suite"
	"gitlab.com/baseline-2025.net/internal/core/services/worker"
	"gitlab.com/baseline-2025.net/internal/handlers"
	"gitlab.com/baseline-2025.net/internal/handlers/batches"
	"gitlab.com/baseline-2025.net/internal/handlers/jobs"
	"gitlab.com/baseline-2025.net/internal/handlers/response"
	submithandler "gitlab.com/baseline-2025.net/internal/handlers/submit"
	"gitlab.com/baseline-2025.net/internal/handlers/suites"
	"gitlab.com/baseline-2025.net/internal/handlers/workers"
)

type ServiceProvider struct {
	intake        submit.IIntakeService
	suiteService  suite.ISuiteService
	batchService  batch.IBatchService
	queue         job.IJobQueue
	workerService worker.IWorkerRegistrationService
	jwt           primary.JWTService
}

func NewServiceProvider(
	intake submit.IIntakeService,
	suiteService suite.ISuiteService,
	batchService batch.IBatchService,
	queue job.IJobQueue,
	workerService worker.IWorkerRegistrationService,
	jwt primary.JWTService,
) *ServiceProvider {
	return &ServiceProvider{
		intake:        intake,
		suiteService:  suiteService,
		batchService:  batchService,
		queue:         queue,
		workerService: workerService,
		jwt:           jwt,
	}
}

type Server struct {
	router          *mux.Router
	srv             *http.Server
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

// Init builds the router. Operator routes live on their own router behind
// the JWT middleware and are tried after every public route, so a method
// mismatch on a shared path falls through to them.
func (s *Server) Init() error {
	p := s.ServiceProvider
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.WriteSuccess(w, map[string]string{"service": s.ServiceName, "status": "ok"})
	}).Methods("GET")

	operator := mux.NewRouter()
	submithandler.NewIntakeHandler(p.intake, s.logger).RegisterRoutes(r)
	suites.NewSuiteHandler(p.suiteService, p.batchService, s.logger).RegisterRoutes(r, operator)
	batches.NewBatchHandler(p.batchService, p.suiteService, s.logger).RegisterRoutes(r, operator)
	jobs.NewJobHandler(p.queue, s.logger).RegisterRoutes(r)
	workers.NewHandler(p.workerService).Register(r)

	r.PathPrefix("/api/").Handler(handlers.New(p.jwt).JWTMiddleware(operator))
	s.router = r
	return nil
}

// Handler returns the router built by Init
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("Server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
