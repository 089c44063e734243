// Package server exposes the recommender over HTTP for hosts that serve many requests.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so a wrong method gets 405 with an Allow header.
//
// # Routes
//
//	GET /recommend?mood=<text>&top=<n>  RecommendationResult as JSON
//	GET /candidates?mood=<text>         ranked playlist candidates as JSON
//	GET /health                         {"status":"ok"}
//
// # Errors
//
// Failures are written as {"error", "kind", "request_id"} with a status derived from the error kind:
// no results and empty playlists are 404, client errors 400, rate limits 429 with Retry-After,
// auth failures 503 and transient failures 502.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
