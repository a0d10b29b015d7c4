package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/auth"
)

// Auth method parameters
type SignInParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailParams struct {
	Email string `json:"email"`
}

type TokenParams struct {
	Token string `json:"token"`
}

type PasswordParams struct {
	Password string `json:"password"`
}

func (r *Router) registerAuth() {
	r.handler.RegisterMethod("auth.sign_up", r.signUp)
	r.handler.RegisterMethod("auth.sign_in", r.signIn)
	r.handler.RegisterMethod("auth.sign_out", r.signOut)
	r.handler.RegisterMethod("auth.current_user", r.currentUser)
	r.handler.RegisterMethod("auth.request_recovery", r.requestRecovery)
	r.handler.RegisterMethod("auth.exchange_recovery", r.exchangeRecovery)
	r.handler.RegisterMethod("auth.update_password", r.updatePassword)
}

func (r *Router) signUp(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p auth.SignUpParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	return r.auth.SignUp(c.Request.Context(), p)
}

func (r *Router) signIn(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p SignInParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	return r.auth.SignIn(c.Request.Context(), p.Email, p.Password)
}

func (r *Router) signOut(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	if err := r.auth.SignOut(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}

func (r *Router) currentUser(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	token := c.GetString(tokenKey)
	if token == "" {
		return nil, apperr.Unauthorized("Sign in to continue")
	}
	return r.auth.CurrentUser(c.Request.Context(), token)
}

func (r *Router) requestRecovery(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p EmailParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if err := r.auth.RequestRecovery(c.Request.Context(), p.Email); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}

func (r *Router) exchangeRecovery(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p TokenParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	return r.auth.ExchangeRecovery(c.Request.Context(), p.Token)
}

func (r *Router) updatePassword(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p PasswordParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	token := c.GetString(tokenKey)
	if token == "" {
		return nil, apperr.Unauthorized("Sign in to continue")
	}
	if err := r.auth.UpdatePassword(c.Request.Context(), token, p.Password); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}
