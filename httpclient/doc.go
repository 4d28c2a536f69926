// Package httpclient is the outbound HTTP client used to reach model
// providers.
//
// A Client resolves paths against a base URL, encodes JSON bodies, lets a
// Signer authenticate the final request and classifies non-2xx responses as
// *Error. DoStream hands back the open body for incremental decoding.
//
//	c, err := httpclient.New(httpclient.Config{BaseURL: "https://example.com"},
//	    httpclient.WithSigner(signer))
//	resp, err := c.DoStream(ctx, httpclient.Request{Method: http.MethodPost, Path: "/invoke", Body: body})
//	defer resp.Close()
package httpclient
