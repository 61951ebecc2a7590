// Package jwt issues and verifies the signed session tickets carried in the
// portal's session cookie. A ticket names a server-side record; it never
// authorises a request on its own.
package jwt
