// Package middleware adapts authdb session validation and ACL checks to
// net/http.
//
// # Guards
//
//   - [Guard] validates the session named by the request and stores the
//     [Principal] in the request context.
//   - [RequirePermission] loads the principal's roles and checks them against
//     a resource, using the request method.
//
// Sessions are presented as
//
//	Authorization: Session <subject>:<session-id>
//
// Session ids never contain ':', so the last colon separates the two parts.
//
// # Status codes
//
// Missing credentials and unknown sessions are 401. An expired license or a
// denied permission is 403. A store failure is 503.
package middleware
