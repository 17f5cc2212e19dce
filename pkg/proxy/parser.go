package proxy

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/ccollicutt/proxylist/pkg/reader"
)

// Named capture groups recognised in a line pattern.
const (
	GroupHost     = "host"
	GroupPort     = "port"
	GroupUsername = "username"
	GroupPassword = "password"
)

// LinePattern maps lines to proxies for one scheme. Which groups the
// pattern declares is settled once at compile time; whether a declared group
// matched is checked for every line.
type LinePattern struct {
	scheme  Scheme
	re      *regexp.Regexp
	host    int
	port    int
	user    int
	pass    int
	defPort int
}

// NewLinePattern inspects re for the named groups host, port, username and
// password. The pattern must declare host. When it does not declare port,
// the scheme must have a default port.
func NewLinePattern(scheme Scheme, re *regexp.Regexp) (*LinePattern, error) {
	lp := &LinePattern{
		scheme: scheme,
		re:     re,
		host:   re.SubexpIndex(GroupHost),
		port:   re.SubexpIndex(GroupPort),
		user:   re.SubexpIndex(GroupUsername),
		pass:   re.SubexpIndex(GroupPassword),
	}

	if lp.host < 0 {
		return nil, fmt.Errorf("%w: pattern %q has no (?P<%s>...) group", ErrMissingField, re.String(), GroupHost)
	}
	if lp.port < 0 {
		port, ok := DefaultPort(scheme)
		if !ok {
			return nil, fmt.Errorf("%w: %q has no default port and pattern has no (?P<%s>...) group",
				ErrUnknownScheme, scheme, GroupPort)
		}
		lp.defPort = port
	}
	return lp, nil
}

// Scheme returns the scheme assigned to every parsed proxy.
func (lp *LinePattern) Scheme() Scheme { return lp.scheme }

// Declares reports whether the pattern declares the named group.
func (lp *LinePattern) Declares(group string) bool {
	return lp.re.SubexpIndex(group) >= 0
}

// Parse converts a single line into a Proxy.
func (lp *LinePattern) Parse(line string) (Proxy, error) {
	loc := lp.re.FindStringSubmatchIndex(line)
	if loc == nil {
		return Proxy{}, fmt.Errorf("%w: line does not match pattern %q", ErrMalformedInput, lp.re.String())
	}

	capture := func(idx int, name string) (string, error) {
		start, end := loc[2*idx], loc[2*idx+1]
		if start < 0 {
			return "", fmt.Errorf("%w: %s", ErrGroupNotMatched, name)
		}
		return line[start:end], nil
	}

	p := Proxy{Scheme: lp.scheme, Port: lp.defPort}

	var err error
	if p.Host, err = capture(lp.host, GroupHost); err != nil {
		return Proxy{}, err
	}
	if p.Host == "" {
		return Proxy{}, fmt.Errorf("%w: empty %s", ErrMalformedInput, GroupHost)
	}

	if lp.port >= 0 {
		raw, err := capture(lp.port, GroupPort)
		if err != nil {
			return Proxy{}, err
		}
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			return Proxy{}, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
		}
		p.Port = port
	}

	if lp.user >= 0 {
		if p.Username, err = capture(lp.user, GroupUsername); err != nil {
			return Proxy{}, err
		}
	}
	if lp.pass >= 0 {
		if p.Password, err = capture(lp.pass, GroupPassword); err != nil {
			return Proxy{}, err
		}
	}
	return p, nil
}

// Parser reads raw lines from a wrapped reader and converts each of them into
// a Proxy. It implements reader.Reader[Proxy].
type Parser struct {
	src     reader.Reader[string]
	pattern *LinePattern
	index   int
	closed  bool
}

// NewParser creates a Parser over src. The Parser takes ownership of src and
// closes it on Close.
func NewParser(src reader.Reader[string], scheme Scheme, re *regexp.Regexp) (*Parser, error) {
	lp, err := NewLinePattern(scheme, re)
	if err != nil {
		return nil, err
	}
	return &Parser{src: src, pattern: lp}, nil
}

// Read returns the next proxy.
// Returns io.EOF when the wrapped reader is exhausted. A line that cannot be
// parsed yields a *ParseError and leaves Index unchanged; reading may continue
// with the following line.
func (p *Parser) Read(ctx context.Context) (Proxy, error) {
	line, err := p.src.Read(ctx)
	if err != nil {
		return Proxy{}, err
	}

	proxy, err := p.pattern.Parse(line)
	if err != nil {
		return Proxy{}, &ParseError{Line: line, Position: p.src.Index(), Err: err}
	}

	p.index++
	return proxy, nil
}

// Reset resets the wrapped reader.
func (p *Parser) Reset(ctx context.Context) error {
	if err := p.src.Reset(ctx); err != nil {
		return err
	}
	p.index = 0
	return nil
}

// Index returns the number of proxies parsed.
func (p *Parser) Index() int { return p.index }

// Len mirrors the wrapped reader, one proxy per line.
func (p *Parser) Len() (int, bool) { return p.src.Len() }

// Pattern returns the line pattern in use.
func (p *Parser) Pattern() *LinePattern { return p.pattern }

// Close closes the wrapped reader.
func (p *Parser) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.src.Close()
}
