// Package providers holds the token payload helpers shared by the identity,
// federation and game service providers under its subpackages.
package providers
