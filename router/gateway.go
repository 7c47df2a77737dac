/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/sony/gobreaker"
)

// GatewayConfig represents offline gateway configuration.
type GatewayConfig struct {
	URL  string `yaml:"url"`
	Pass string `yaml:"pass"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *GatewayConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type proxy struct {
		URL  string `yaml:"url"`
		Pass string `yaml:"pass"`
	}
	p := proxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	if len(p.URL) == 0 {
		return errors.New("router.GatewayConfig: must specify a url")
	}
	c.URL = p.URL
	c.Pass = p.Pass
	return nil
}

// Gateway forwards offline-stored messages to an external endpoint.
type Gateway interface {
	Route(msg *xmpp.Message) error
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpGateway struct {
	url       string
	authToken string
	cb        *gobreaker.CircuitBreaker
	client    httpClient
}

// NewHTTPGateway returns an HTTP forwarding gateway guarded by a
// circuit breaker.
func NewHTTPGateway(url string, authToken string) Gateway {
	return &httpGateway{
		url:       url,
		authToken: authToken,
		cb:        gobreaker.NewCircuitBreaker(gobreaker.Settings{}),
		client:    &http.Client{},
	}
}

func (g *httpGateway) Route(msg *xmpp.Message) error {
	reqBuf := bytes.NewBuffer(nil)
	msg.ToXML(reqBuf, true)

	req, err := http.NewRequest(http.MethodPost, g.url, reqBuf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Authorization", g.authToken)

	_, err = g.cb.Execute(func() (interface{}, error) {
		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("response status code: %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
