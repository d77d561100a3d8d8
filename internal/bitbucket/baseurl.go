package bitbucket

import (
	"errors"
	"fmt"
	"net/url"
)

// BaseURL returns the address of the Bitbucket instance of a pull request
// link.
// The result consists of the scheme, the host, the optional port and a
// trailing slash, e.g. "https://bitbucket.example.com:7990/".
func BaseURL(link string) (string, error) {
	if link == "" {
		return "", errors.New("link is empty")
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing url %q failed: %w", link, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url %q has unsupported scheme %q, expecting http or https", link, u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", link)
	}

	return u.Scheme + "://" + u.Host + "/", nil
}
