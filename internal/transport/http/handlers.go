package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"

	"quizz-service/internal/app"
	"quizz-service/internal/domain"
)

// Handler serves the JSON and CSV endpoints.
type Handler struct {
	service  *app.QuizService
	validate *validator.Validate
}

func NewHandler(service *app.QuizService) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type answerRequest struct {
	Email      string `json:"email" validate:"required,email"`
	QuestionID string `json:"question_id" validate:"required"`
	Options    []int  `json:"options" validate:"max=10"`
}

type answerResponse struct {
	ID         string `json:"id"`
	Sending    string `json:"sending"`
	QuestionID string `json:"questionId"`
	Choices    string `json:"choices"`
}

type reviewRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Text  string `json:"text" validate:"required,max=65536"`
}

type errResp struct {
	Error string `json:"error"`
}

// SubmitAnswer handles POST /sendings/{token}/answers.
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	answer, err := h.service.SubmitAnswer(r.Context(), app.Submission{
		Email:        strings.TrimSpace(req.Email),
		SendingToken: token,
		QuestionID:   req.QuestionID,
		Options:      req.Options,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, answerResponse{
		ID:         answer.ID,
		Sending:    token,
		QuestionID: answer.QuestionID,
		Choices:    answer.Choices,
	})
}

// NextQuestion handles GET /sendings/{token}/next?email=.
func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if err := h.validate.Var(email, "required,email"); err != nil {
		writeErr(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	next, err := h.service.NextQuestion(r.Context(), chi.URLParam(r, "token"), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// Statistics handles GET /sendings/{token}/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportCSV handles GET /sendings/{token}/export.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	stats, err := h.service.Statistics(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "sending-"+token+".csv"))
	if err := app.WriteCSV(w, stats); err != nil {
		glog.Errorf("[%s] write csv for %s: %v", middleware.GetReqID(r.Context()), token, err)
	}
}

// History handles GET /persons/{email}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.StudentHistory(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// SubmitReview handles POST /reviews/{review}.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	review, err := h.service.SubmitReview(r.Context(), chi.URLParam(r, "review"), strings.TrimSpace(req.Email), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeErr(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(fields, "; ")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		glog.Errorf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		writeErr(w, status, "internal error")
		return
	}
	writeErr(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownIdentity),
		errors.Is(err, domain.ErrSendingNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAuthorizedForSending):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoAnswerProvided),
		errors.Is(err, domain.ErrEmptyReview):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidOption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateAnswer):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSendingClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
