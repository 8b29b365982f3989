package inject

import (
	"net"
	"net/http"
	"time"
)

// HTTPTimeout bounds a single management API call, including a migration run
const HTTPTimeout = 60 * time.Second

// NewHTTPClient produces a configured http.Client
func NewHTTPClient() *http.Client {
	dialTimeout := 10 * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: HTTPTimeout,
		MaxIdleConnsPerHost:   4,
	}

	return &http.Client{
		Timeout:   HTTPTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
