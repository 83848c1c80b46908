// Package client is the API SDK: it talks to the service over REST, keeps
// its credential pair in a TokenStore, and routes every authenticated call
// through the refresh gateway so callers never see a stale access token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quizlink-service/internal/auth"
	"quizlink-service/internal/domain"
)

// Client calls the quizlink API on behalf of one identity.
type Client struct {
	baseURL string
	store   *auth.TokenStore
	// authed routes through the gateway; plain carries the unauthenticated
	// surface (register, login, refresh) and is what the gateway itself
	// refreshes through.
	authed *http.Client
	plain  *http.Client
}

// New builds a client. persistence may be nil; base may be nil to use the
// default transport.
func New(baseURL string, persistence auth.CredentialPersistence, base http.RoundTripper) *Client {
	trimmed := strings.TrimRight(baseURL, "/")
	plain := &http.Client{Transport: base, Timeout: 30 * time.Second}
	store := auth.NewTokenStore(persistence)
	gateway := auth.NewGateway(base, store, &apiRefresher{baseURL: trimmed, http: plain})
	return &Client{
		baseURL: trimmed,
		store:   store,
		authed:  &http.Client{Transport: gateway, Timeout: 30 * time.Second},
		plain:   plain,
	}
}

// Init loads a persisted login, if any.
func (c *Client) Init(ctx context.Context) error { return c.store.Init(ctx) }

// apiRefresher exchanges a refresh token over the public refresh endpoint.
type apiRefresher struct {
	baseURL string
	http    *http.Client
}

func (r *apiRefresher) Refresh(ctx context.Context, refreshToken string) (*domain.CredentialPair, error) {
	pair := &domain.CredentialPair{}
	err := doJSON(ctx, r.http, http.MethodPost, r.baseURL+"/api/refresh",
		map[string]string{"refreshToken": refreshToken}, pair)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Register creates an identity. It does not log in.
func (c *Client) Register(ctx context.Context, identity, secret string) error {
	return c.postPlain(ctx, "/api/register", map[string]string{"identity": identity, "secret": secret}, nil)
}

// Login authenticates and stores the issued pair for subsequent calls.
func (c *Client) Login(ctx context.Context, identity, secret string) error {
	pair := domain.CredentialPair{}
	if err := c.postPlain(ctx, "/api/login", map[string]string{"identity": identity, "secret": secret}, &pair); err != nil {
		return err
	}
	return c.store.Set(ctx, pair)
}

// Logout revokes the refresh token and drops the stored pair either way.
func (c *Client) Logout(ctx context.Context) error {
	pair, ok := c.store.Get()
	if ok {
		_ = c.postPlain(ctx, "/api/logout", map[string]string{"refreshToken": pair.RefreshToken}, nil)
	}
	return c.store.Clear(ctx)
}

// Quiz is the client-side rendering of a quiz. Correct choice ids are only
// present for quizzes the caller owns.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	OwnerID         string     `json:"ownerId"`
	Questions       []Question `json:"questions"`
	DurationSeconds int        `json:"durationSeconds"`
	Visibility      string     `json:"visibility"`
	ShareCode       string     `json:"shareCode,omitempty"`
	ShareLink       string     `json:"shareLink,omitempty"`
	Draft           bool       `json:"draft,omitempty"`
}

type Question struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	Choices         []Choice `json:"choices"`
	CorrectChoiceID string   `json:"correctChoiceId,omitempty"`
}

type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuizInput is the payload for creating or updating a quiz.
type QuizInput struct {
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Questions       []QuestionInput `json:"questions"`
	DurationSeconds int             `json:"durationSeconds"`
	Visibility      string          `json:"visibility"`
	AllowAnonymous  bool            `json:"allowAnonymous,omitempty"`
}

type QuestionInput struct {
	Prompt             string   `json:"prompt"`
	Choices            []string `json:"choices"`
	CorrectChoiceIndex int      `json:"correctChoiceIndex"`
}

func (c *Client) CreateQuiz(ctx context.Context, input QuizInput) (*Quiz, error) {
	quiz := &Quiz{}
	if err := c.post(ctx, "/api/quizzes", input, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// Join resolves a share code to its quiz.
func (c *Client) Join(ctx context.Context, shareCode string) (*Quiz, error) {
	quiz := &Quiz{}
	if err := c.get(ctx, "/api/join/"+shareCode, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// Session is the client-side rendering of an attempt.
type Session struct {
	ID              string     `json:"id"`
	QuizID          string     `json:"quizId"`
	QuizTitle       string     `json:"quizTitle"`
	State           string     `json:"state"`
	StartedAt       time.Time  `json:"startedAt"`
	DurationSeconds int        `json:"durationSeconds"`
	Questions       []Question `json:"questions"`
	Score           *Score     `json:"score,omitempty"`
}

type Score struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// AnswerAck reports whether an answer was recorded and the session state the
// call observed.
type AnswerAck struct {
	Accepted bool   `json:"accepted"`
	State    string `json:"state"`
}

// Result is the outcome of completing a session.
type Result struct {
	Score Score  `json:"score"`
	State string `json:"state"`
}

// StartSession begins an attempt, by quiz id or share code.
func (c *Client) StartSession(ctx context.Context, quizID, shareCode string) (*Session, error) {
	session := &Session{}
	err := c.post(ctx, "/api/sessions", map[string]string{"quizId": quizID, "shareCode": shareCode}, session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID, choiceID string) (*AnswerAck, error) {
	ack := &AnswerAck{}
	err := c.post(ctx, "/api/sessions/"+sessionID+"/answers",
		map[string]string{"questionId": questionID, "choiceId": choiceID}, ack)
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (c *Client) CompleteSession(ctx context.Context, sessionID string) (*Result, error) {
	result := &Result{}
	if err := c.post(ctx, "/api/sessions/"+sessionID+"/complete", nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

// IngestionJob mirrors the server's job record.
type IngestionJob struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	QuizID   string `json:"quizId,omitempty"`
	ImageRef string `json:"imageRef"`
	Error    string `json:"error,omitempty"`
}

// SubmitImage queues an image for extraction.
func (c *Client) SubmitImage(ctx context.Context, imageRef string) (*IngestionJob, error) {
	job := &IngestionJob{}
	if err := c.post(ctx, "/api/ingestions", map[string]string{"imageRef": imageRef}, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Ingestion returns the job's current state.
func (c *Client) Ingestion(ctx context.Context, jobID string) (*IngestionJob, error) {
	job := &IngestionJob{}
	if err := c.get(ctx, "/api/ingestions/"+jobID, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ConfirmIngestion publishes the draft held by an extracted job.
func (c *Client) ConfirmIngestion(ctx context.Context, jobID string, input QuizInput) (*Quiz, error) {
	quiz := &Quiz{}
	if err := c.post(ctx, "/api/ingestions/"+jobID+"/confirm", input, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	return doJSON(ctx, c.authed, http.MethodPost, c.baseURL+path, payload, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return doJSON(ctx, c.authed, http.MethodGet, c.baseURL+path, nil, out)
}

func (c *Client) postPlain(ctx context.Context, path string, payload, out any) error {
	return doJSON(ctx, c.plain, http.MethodPost, c.baseURL+path, payload, out)
}

// doJSON sends one JSON request and decodes either the result or the error
// envelope, rebuilding the server's taxonomy error so callers can branch on
// its kind.
func doJSON(ctx context.Context, httpClient *http.Client, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Kind    domain.Kind `json:"kind"`
			Message string      `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Kind == "" {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return domain.NewError(envelope.Error.Kind, envelope.Error.Message)
}
