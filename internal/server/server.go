/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes an editor Session over HTTP for a browser front end.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"gostoryboard/internal/app"
	applog "gostoryboard/internal/log"
)

// Options configures the HTTP surface.
type Options struct {
	Addr           string
	AllowedOrigins []string
}

// Server serves one Session.
type Server struct {
	session *app.Session
	opts    Options
	log     *slog.Logger
}

func New(s *app.Session, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{session: s, opts: opts, log: applog.WithComponent("server")}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/version", s.version)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Cache-Control", "no-store"))
		r.Get("/state", s.getState)
		r.Post("/reset", s.reset)

		r.Post("/projects", s.addProject)
		r.Patch("/projects/{projectID}", s.renameProject)
		r.Put("/projects/{projectID}/select", s.selectProject)
		r.Delete("/projects/{projectID}", s.deleteProject)

		r.Post("/issues", s.addIssue)
		r.Patch("/issues/{issueID}", s.renameIssue)
		r.Delete("/issues/{issueID}", s.deleteIssue)
		r.Put("/issues/{issueID}/pages/{pageID}/select", s.selectPage)

		r.Post("/pages", s.addPage)
		r.Delete("/pages/{pageID}", s.deletePage)

		r.Post("/characters", s.upsertCharacter)
		r.Delete("/characters/{characterID}", s.deleteCharacter)
		r.Post("/characters/{characterID}/toggle", s.toggleCharacter)

		r.Put("/layout", s.setLayout)
		r.Post("/generate", s.generate)
		r.Post("/connect", s.reconnect)

		r.Patch("/panels/{panelID}", s.updatePanel)
		r.Post("/panels/{panelID}/front", s.bringToFront)
		r.Delete("/panels/{panelID}", s.deletePanel)
		r.Post("/pointer", s.pointer)

		r.Post("/export", s.export)

		r.Get("/notices", s.notices)
		r.Delete("/notices/{noticeID}", s.dismissNotice)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return c.Handler(r)
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		lvl := slog.LevelDebug
		if ww.Status() >= 500 {
			lvl = slog.LevelWarn
		}
		s.log.Log(r.Context(), lvl, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("req_id", middleware.GetReqID(r.Context())),
			slog.Duration("took", time.Since(start)),
		)
	})
}
