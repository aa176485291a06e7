package auth

import "errors"

// Common authentication service errors
var (
	// ErrInvalidToken indicates the token format is invalid or the signature doesn't match.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the access token has expired.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the nbf claim lies in the future.
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrInvalidRefreshToken indicates the refresh token is malformed or forged.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrExpiredRefreshToken indicates the refresh token has expired.
	ErrExpiredRefreshToken = errors.New("refresh token has expired")

	// ErrWrongTokenType indicates a refresh token was used as an access token or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
)
