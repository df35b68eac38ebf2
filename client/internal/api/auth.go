package api

import (
	"net/http"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

// AuthClient wraps the account endpoints.
type AuthClient struct {
	client *Client
}

// NewAuthClient returns an AuthClient bound to c.
func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{client: c}
}

// Register creates an account; the password doubles as its confirmation.
func (a *AuthClient) Register(username, password string) *Call[protocol.RegisterResp] {
	return newCall[protocol.RegisterResp](a.client, Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   protocol.RegisterReq{Username: username, Password: password, PasswordConfirm: password},
	})
}

// Login exchanges credentials for a bearer token.
func (a *AuthClient) Login(username, password string) *Call[protocol.LoginResp] {
	return newCall[protocol.LoginResp](a.client, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   protocol.LoginReq{Username: username, Password: password},
	})
}
