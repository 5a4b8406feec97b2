package auth

import "errors"

var (
	MissingCredentialsErr   = errors.New("username and password are required")
	AuthenticationFailedErr = errors.New("invalid credentials")
	RefreshFailedErr        = errors.New("refresh failed")
	TenantUnresolvedErr     = errors.New("response missing tenant schema")
)
