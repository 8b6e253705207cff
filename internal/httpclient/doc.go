// Package httpclient builds the HTTP client shared by the page fetcher and the
// image downloader.
//
// One client is created per run so that connections are pooled across page
// fetches and image downloads. The client can optionally route every request
// through a SOCKS5 proxy, and injects configured headers into each request,
// including requests made while following redirects.
package httpclient
