package httpapi

import (
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
)

// RegisterRequest is the POST /register body.
type RegisterRequest struct {
	AcctNo    int64  `json:"acct_no" binding:"required,gt=0"`
	NickName  string `json:"nick_name" binding:"required,max=64"`
	TelNo     string `json:"tel_no" binding:"required,telno"`
	LoginPW   string `json:"login_pw" binding:"required"`
	AppKey    string `json:"app_key" binding:"max=512"`
	AppSecret string `json:"app_secret" binding:"max=512"`
	BotToken1 string `json:"bot_token1" binding:"max=512"`
	BotToken2 string `json:"bot_token2" binding:"max=512"`
}

func (r RegisterRequest) toEngine() usersvc.RegisterRequest {
	return usersvc.RegisterRequest{
		AcctNo:    r.AcctNo,
		NickName:  r.NickName,
		TelNo:     r.TelNo,
		Password:  r.LoginPW,
		AppKey:    r.AppKey,
		AppSecret: r.AppSecret,
		BotToken1: r.BotToken1,
		BotToken2: r.BotToken2,
	}
}

// LoginForm is the OAuth2 password grant form. Username carries the
// account number.
type LoginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// LoginJSON is the JSON alternative to LoginForm.
type LoginJSON struct {
	AcctNo   int64  `json:"acct_no" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the POST /refresh body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ProfileUpdateRequest is the PUT /me body. Absent fields are left as they are.
type ProfileUpdateRequest struct {
	NickName  *string `json:"nick_name" binding:"omitempty,max=64"`
	TelNo     *string `json:"tel_no" binding:"omitempty,telno"`
	ChangePW  *string `json:"change_pw"`
	AppKey    *string `json:"app_key" binding:"omitempty,max=512"`
	AppSecret *string `json:"app_secret" binding:"omitempty,max=512"`
	BotToken1 *string `json:"bot_token1" binding:"omitempty,max=512"`
	BotToken2 *string `json:"bot_token2" binding:"omitempty,max=512"`
}

func (r ProfileUpdateRequest) toEngine() usersvc.ProfileChange {
	return usersvc.ProfileChange{
		NickName:    r.NickName,
		TelNo:       r.TelNo,
		AppKey:      r.AppKey,
		AppSecret:   r.AppSecret,
		BotToken1:   r.BotToken1,
		BotToken2:   r.BotToken2,
		NewPassword: r.ChangePW,
	}
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func newTokenResponse(pair usersvc.TokenPair, now time.Time) TokenResponse {
	tokenType := pair.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	expiresIn := int64(pair.AccessExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
	}
}

// ProfileOut is the public view of an account. Credential material never
// leaves the engine.
type ProfileOut struct {
	AcctNo      int64     `json:"acct_no"`
	NickName    string    `json:"nick_name"`
	TelNo       string    `json:"tel_no"`
	AppKey      string    `json:"app_key"`
	AppSecret   string    `json:"app_secret"`
	BotToken1   string    `json:"bot_token1"`
	BotToken2   string    `json:"bot_token2"`
	CreatedAt   time.Time `json:"created_at"`
	LastChgDate time.Time `json:"last_chg_date"`
}

func newProfileOut(acct usersvc.Account) ProfileOut {
	return ProfileOut{
		AcctNo:      acct.AcctNo,
		NickName:    acct.NickName,
		TelNo:       acct.TelNo,
		AppKey:      acct.AppKey,
		AppSecret:   acct.AppSecret,
		BotToken1:   acct.BotToken1,
		BotToken2:   acct.BotToken2,
		CreatedAt:   acct.CreatedAt,
		LastChgDate: acct.LastChangedAt,
	}
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
