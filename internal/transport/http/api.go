// Package http exposes the REST and websocket surface of the service.
package http

import (
	"errors"
	"net/http"

	"quizlink-service/internal/app"
	"quizlink-service/internal/auth"
	"quizlink-service/internal/domain"
)

// API wires the use cases into HTTP handlers.
type API struct {
	authority *auth.Authority
	registry  *app.Registry
	engine    *app.SessionEngine
	pipeline  *app.IngestionPipeline
}

func NewAPI(authority *auth.Authority, registry *app.Registry, engine *app.SessionEngine, pipeline *app.IngestionPipeline) *API {
	return &API{authority: authority, registry: registry, engine: engine, pipeline: pipeline}
}

// Register mounts every route on the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("POST /api/refresh", a.handleRefresh)
	mux.HandleFunc("POST /api/logout", a.handleLogout)

	mux.HandleFunc("POST /api/quizzes", requireAuth(a.authority, a.handleCreateQuiz))
	mux.HandleFunc("GET /api/quizzes", requireAuth(a.authority, a.handleListQuizzes))
	mux.HandleFunc("GET /api/quizzes/{id}", optionalAuth(a.authority, a.handleGetQuiz))
	mux.HandleFunc("PUT /api/quizzes/{id}", requireAuth(a.authority, a.handleUpdateQuiz))
	mux.HandleFunc("DELETE /api/quizzes/{id}", requireAuth(a.authority, a.handleDeleteQuiz))
	mux.HandleFunc("GET /api/join/{code}", optionalAuth(a.authority, a.handleJoin))

	mux.HandleFunc("POST /api/quizzes/{id}/shares", requireAuth(a.authority, a.handleGrantShare))
	mux.HandleFunc("GET /api/quizzes/{id}/shares", requireAuth(a.authority, a.handleListShares))
	mux.HandleFunc("DELETE /api/quizzes/{id}/shares/{grantee}", requireAuth(a.authority, a.handleRevokeShare))

	mux.HandleFunc("POST /api/sessions", requireAuth(a.authority, a.handleStartSession))
	mux.HandleFunc("GET /api/sessions", requireAuth(a.authority, a.handleListSessions))
	mux.HandleFunc("GET /api/sessions/{id}", requireAuth(a.authority, a.handleGetSession))
	mux.HandleFunc("POST /api/sessions/{id}/answers", requireAuth(a.authority, a.handleSubmitAnswer))
	mux.HandleFunc("POST /api/sessions/{id}/complete", requireAuth(a.authority, a.handleComplete))

	mux.HandleFunc("POST /api/ingestions", requireAuth(a.authority, a.handleSubmitIngestion))
	mux.HandleFunc("GET /api/ingestions", requireAuth(a.authority, a.handleListIngestions))
	mux.HandleFunc("GET /api/ingestions/{id}", requireAuth(a.authority, a.handleGetIngestion))
	mux.HandleFunc("POST /api/ingestions/{id}/confirm", requireAuth(a.authority, a.handleConfirmIngestion))
}

type credentialsRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := a.authority.Register(r.Context(), req.Identity, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "identity": user.Identity})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := a.authority.Issue(r.Context(), req.Identity, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := a.authority.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.authority.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type quizRequest struct {
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Questions       []questionRequest `json:"questions"`
	DurationSeconds int               `json:"durationSeconds"`
	Visibility      string            `json:"visibility"`
	AllowAnonymous  bool              `json:"allowAnonymous"`
}

type questionRequest struct {
	Prompt             string   `json:"prompt"`
	Choices            []string `json:"choices"`
	CorrectChoiceIndex int      `json:"correctChoiceIndex"`
}

func (q quizRequest) input() app.QuizInput {
	questions := make([]app.QuestionInput, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, app.QuestionInput{
			Prompt:             question.Prompt,
			Choices:            question.Choices,
			CorrectChoiceIndex: question.CorrectChoiceIndex,
		})
	}
	return app.QuizInput{
		Title:           q.Title,
		Description:     q.Description,
		Questions:       questions,
		DurationSeconds: q.DurationSeconds,
		Visibility:      domain.Visibility(q.Visibility),
		AllowAnonymous:  q.AllowAnonymous,
	}
}

func (a *API) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quiz, err := a.registry.Create(r.Context(), callerID(r), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newQuizView(quiz, callerID(r), a.registry.ShareLink(quiz)))
}

func (a *API) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	mine, err := a.registry.ListMine(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	shared, err := a.registry.ListSharedWith(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]quizView{
		"mine":         newQuizViews(mine, caller, a.registry.ShareLink),
		"sharedWithMe": newQuizViews(shared, caller, a.registry.ShareLink),
	})
}

func (a *API) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.registry.Get(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizView(quiz, callerID(r), a.registry.ShareLink(quiz)))
}

func (a *API) handleUpdateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quiz, err := a.registry.Update(r.Context(), callerID(r), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizView(quiz, callerID(r), a.registry.ShareLink(quiz)))
}

func (a *API) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Delete(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.registry.ResolveShareCode(r.Context(), callerID(r), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	view := newQuizView(quiz, callerID(r), a.registry.ShareLink(quiz))
	// The caller resolved the code themselves, so the link reveals nothing.
	view.ShareLink = a.registry.ShareLink(quiz)
	writeJSON(w, http.StatusOK, view)
}

type grantRequest struct {
	Identity   string `json:"identity"`
	Permission string `json:"permission"`
}

func (a *API) handleGrantShare(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	grantee, err := a.authority.Lookup(r.Context(), req.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	grant, err := a.registry.GrantShare(r.Context(), callerID(r), r.PathValue("id"), grantee.ID, domain.Permission(req.Permission))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (a *API) handleListShares(w http.ResponseWriter, r *http.Request) {
	grants, err := a.registry.ListGrants(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (a *API) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	err := a.registry.RevokeShare(r.Context(), callerID(r), r.PathValue("id"), r.PathValue("grantee"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type startSessionRequest struct {
	QuizID    string `json:"quizId"`
	ShareCode string `json:"shareCode"`
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := a.engine.Start(r.Context(), callerID(r), app.QuizRef{QuizID: req.QuizID, ShareCode: req.ShareCode})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.engine.ListByTaker(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, newSessionView(session))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.engine.Get(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	ChoiceID   string `json:"choiceId"`
}

type answerResponse struct {
	Accepted bool                `json:"accepted"`
	State    domain.SessionState `json:"state"`
}

func (a *API) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := a.engine.SubmitAnswer(r.Context(), callerID(r), r.PathValue("id"), req.QuestionID, req.ChoiceID)
	if err != nil {
		// A state-dependent rejection reports the transition it observed,
		// e.g. the expiry a late answer just triggered.
		state := ""
		if session != nil {
			state = string(session.State)
		}
		writeErrorState(w, err, state)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Accepted: true, State: session.State})
}

type completeResponse struct {
	Score scoreView           `json:"score"`
	State domain.SessionState `json:"state"`
}

func (a *API) handleComplete(w http.ResponseWriter, r *http.Request) {
	session, err := a.engine.Complete(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		state := ""
		if session != nil {
			state = string(session.State)
		}
		writeErrorState(w, err, state)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{Score: *newScoreView(session.Score), State: session.State})
}

type ingestionRequest struct {
	ImageRef string `json:"imageRef"`
}

func (a *API) handleSubmitIngestion(w http.ResponseWriter, r *http.Request) {
	var req ingestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	job, err := a.pipeline.Submit(r.Context(), callerID(r), req.ImageRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (a *API) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.pipeline.ListByOwner(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (a *API) handleGetIngestion(w http.ResponseWriter, r *http.Request) {
	job, err := a.pipeline.Get(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type confirmRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"durationSeconds"`
	Visibility      string `json:"visibility"`
	AllowAnonymous  bool   `json:"allowAnonymous"`
}

func (a *API) handleConfirmIngestion(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quiz, err := a.pipeline.Confirm(r.Context(), callerID(r), r.PathValue("id"), app.ConfirmInput{
		Title:           req.Title,
		Description:     req.Description,
		DurationSeconds: req.DurationSeconds,
		Visibility:      domain.Visibility(req.Visibility),
		AllowAnonymous:  req.AllowAnonymous,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newQuizView(quiz, callerID(r), a.registry.ShareLink(quiz)))
}

// errIsKind reports whether err carries the given taxonomy kind.
func errIsKind(err error, kind domain.Kind) bool {
	var de *domain.Error
	return errors.As(err, &de) && de.Kind == kind
}
