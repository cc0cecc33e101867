package common

// AuthorizationHeaderName is the HTTP header carrying the access token.
const AuthorizationHeaderName = "Authorization"

// BearerScheme prefixes the access token inside the Authorization header.
const BearerScheme = "Bearer "

// DefaultRole is assigned to users created through sign-up.
const DefaultRole = "user"
