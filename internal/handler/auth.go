package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/streamcart/streamcart/internal/domain/user"
)

// credentials is the decoded register/login request body.
type credentials struct {
	Name     string
	Email    string
	Password string
}

func decodeCredentials(r *http.Request) (*credentials, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	var c credentials
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "password":
			c.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode body")
	}

	return &c, nil
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(u.ID)
	e.FieldStart("name")
	e.Str(u.Name)
	e.FieldStart("email")
	e.Str(u.Email)
	e.ObjEnd()
}

// register creates a user and signs the session in as them.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if c.Email == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.users.Register(r.Context(), c.Name, c.Email, c.Password)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.serverError(w, r, err)
		return
	}

	sess := sessionFrom(r.Context())
	if err := h.sessions.SetUser(r.Context(), sess.Token, u.Email); err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeUser(e, u)
	})
}

// login checks credentials and binds the user to the session.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	u, err := h.users.Authenticate(r.Context(), c.Email, c.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.serverError(w, r, err)
		return
	}

	sess := sessionFrom(r.Context())
	if err := h.sessions.SetUser(r.Context(), sess.Token, u.Email); err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeUser(e, u)
	})
}

// logout unbinds the user from the session. The cart session itself
// survives so an applied coupon is not lost by signing out.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := h.sessions.SetUser(r.Context(), sess.Token, ""); err != nil {
		h.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
