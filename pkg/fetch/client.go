package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/config"
)

const maxRedirects = 10

// ErrTooManyRedirects is returned by the client when a redirect chain exceeds maxRedirects
var ErrTooManyRedirects = errors.New("too many redirects")

// NewClient creates the HTTP client shared by the robots gate and the crawl engine.
// Redirects are followed; scope checks on the final URL happen in the engine.
func NewClient(cfg config.HTTPClientConfig, log *logrus.Entry) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}

	client := &http.Client{
		Timeout:   cfg.Timeout, // Expiry surfaces as a transport error
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: stopped after %d hops at %s", ErrTooManyRedirects, len(via), req.URL)
			}
			log.WithFields(logrus.Fields{"from": via[len(via)-1].URL.String(), "to": req.URL.String(), "hop": len(via)}).Debug("Following redirect")
			return nil
		},
	}
	log.WithFields(logrus.Fields{"timeout": cfg.Timeout, "max_idle_conns": cfg.MaxIdleConns}).Debug("HTTP client initialized")
	return client
}
