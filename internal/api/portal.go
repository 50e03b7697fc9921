package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/ashureev/assist-portal/internal/directory"
	"github.com/ashureev/assist-portal/internal/domain"
	"github.com/ashureev/assist-portal/internal/gate"
	"github.com/ashureev/assist-portal/internal/identity"
	"github.com/go-chi/chi/v5"
)

// Login outcomes written back to the login form.
const (
	LoginSuccess    = "success"
	LoginNoMatch    = "No match !"
	LoginIncomplete = "No enter !"
)

const maxLoginBodySize = 64 << 10

// Content pages and their two renderings.
var (
	homeViews     = gate.Variants{Full: "home", Limited: "l-home"}
	chatViews     = gate.Variants{Full: "chat-bot", Limited: "l-chat-bot"}
	learningViews = gate.Single("e-learning")
	docViews      = gate.Single("doc")
	othersViews   = gate.Variants{Full: "others", Limited: "l-others"}
	profileViews  = gate.Variants{Full: "profile", Limited: "l-profile"}
	paramsViews   = gate.Variants{Full: "params", Limited: "l-params"}
	assistViews   = gate.Variants{Full: "assist", Limited: "l-assist"}
	companyViews  = gate.Single("company")
)

// PortalHandler serves the login flow and the content pages.
type PortalHandler struct {
	*Handler
}

// NewPortalHandler creates a portal handler.
func NewPortalHandler(base *Handler) *PortalHandler {
	return &PortalHandler{Handler: base}
}

// RegisterRoutes registers portal routes.
func (h *PortalHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.LoginPage)
	r.Post("/", h.Login)

	r.Get("/home", h.Home)
	r.Get("/chat-bot", h.page(chatViews))
	r.Get("/e-learning", h.page(learningViews))
	r.Get("/doc", h.page(docViews))
	r.Get("/others", h.page(othersViews))
	r.Get("/others/profile", h.Profile)
	r.Get("/others/parameters", h.page(paramsViews))
	r.Get("/others/assist", h.page(assistViews))
	r.Get("/others/logout", h.Logout)
	r.Get("/company", h.Company)

	r.Get("/api/me", h.GetMe)
}

// LoginPage shows the login form, or sends a logged-in user home.
func (h *PortalHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	session := identity.SessionFromContext(r.Context())
	if gate.Authorize(session) != gate.Unauthenticated {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	h.render(w, "login", map[string]any{"error": ""})
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Login checks the submitted credentials and answers with a plain-text outcome.
func (h *PortalHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := identity.SessionFromContext(ctx)
	if session == nil {
		Error(w, http.StatusInternalServerError, "no session")
		return
	}

	creds, err := readLogin(w, r)
	if err != nil {
		Text(w, http.StatusOK, LoginIncomplete)
		return
	}

	err = h.gate.Authenticate(ctx, session, creds.Name, creds.Password)
	switch {
	case errors.Is(err, gate.ErrBadRequest):
		Text(w, http.StatusOK, LoginIncomplete)
		return
	case errors.Is(err, gate.ErrAuthFailure):
		slog.Info("Login rejected", "ip", identity.IPFromRequest(r))
		Text(w, http.StatusOK, LoginNoMatch)
		return
	case err != nil:
		fail(w, "Login failed", err)
		return
	}

	if err := identity.Rotate(ctx, w, h.repo, session, h.sessionOpts); err != nil {
		fail(w, "Failed to persist login", err)
		return
	}
	slog.Info("User logged in", "email", session.Email, "elevated", session.Perm)
	Text(w, http.StatusOK, LoginSuccess)
}

// readLogin accepts either a JSON body or a form post.
func readLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodySize)

	var creds loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&creds)
		return creds, err
	}
	if err := r.ParseForm(); err != nil {
		return creds, err
	}
	creds.Name = r.PostFormValue("name")
	creds.Password = r.PostFormValue("password")
	return creds, nil
}

// page serves a content page that needs nothing beyond the user name.
func (h *PortalHandler) page(views gate.Variants) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, view, ok := h.resolve(w, r, views)
		if !ok {
			return
		}
		h.render(w, view, map[string]any{"user": session.User})
	}
}

// resolve picks the view for the caller or redirects anonymous callers to "/".
func (h *PortalHandler) resolve(w http.ResponseWriter, r *http.Request, views gate.Variants) (*domain.SessionState, string, bool) {
	session := identity.SessionFromContext(r.Context())
	view := views.Select(gate.Authorize(session))
	if view == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, "", false
	}
	return session, view, true
}

// Home serves /home with the information feed.
func (h *PortalHandler) Home(w http.ResponseWriter, r *http.Request) {
	session, view, ok := h.resolve(w, r, homeViews)
	if !ok {
		return
	}
	infos, err := h.content.Informations(r.Context())
	if err != nil {
		fail(w, "Failed to load informations", err)
		return
	}
	h.render(w, view, map[string]any{"user": session.User, "infos": infos})
}

// Profile serves /others/profile for the logged-in user.
func (h *PortalHandler) Profile(w http.ResponseWriter, r *http.Request) {
	session, view, ok := h.resolve(w, r, profileViews)
	if !ok {
		return
	}
	ctx := r.Context()

	user, err := h.content.FindByEmail(ctx, session.Email)
	if errors.Is(err, directory.ErrUserNotFound) {
		// The account left the directory after login.
		slog.Warn("Logged-in user missing from directory", "email", session.Email)
		h.endSession(w, r, session)
		return
	}
	if err != nil {
		fail(w, "Failed to load profile", err)
		return
	}

	perm := "Non"
	if session.Perm {
		perm = "Oui"
	}
	h.render(w, view, map[string]any{
		"user":       session.User,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"email":      session.Email,
		"phone":      user.Phone,
		"rank":       user.Rank,
		"perm":       perm,
		"photo":      user.PhotoURL(),
	})
}

// Company serves /company.
func (h *PortalHandler) Company(w http.ResponseWriter, r *http.Request) {
	session, view, ok := h.resolve(w, r, companyViews)
	if !ok {
		return
	}
	company, err := h.content.Company(r.Context())
	if err != nil {
		fail(w, "Failed to load company", err)
		return
	}
	h.render(w, view, map[string]any{
		"user":        session.User,
		"name":        company.Name,
		"description": company.Description,
	})
}

// Logout clears the session and returns to the login page.
func (h *PortalHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := identity.SessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if session.Authenticated() {
		slog.Info("User logged out", "email", session.Email)
	}
	h.endSession(w, r, session)
}

func (h *PortalHandler) endSession(w http.ResponseWriter, r *http.Request, session *domain.SessionState) {
	gate.Logout(session)
	if err := h.repo.SaveSession(r.Context(), session); err != nil {
		fail(w, "Failed to persist logout", err)
		return
	}
	if h.sockets != nil {
		h.sockets.CloseSession(session.ID)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// GetMe returns the current user's session summary.
func (h *PortalHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	session := identity.SessionFromContext(r.Context())
	access := gate.Authorize(session)
	if access == gate.Unauthenticated {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"user":   session.User,
		"email":  session.Email,
		"perm":   session.Perm,
		"access": access.String(),
	})
}
