// Package repourl normalizes GitLab repository URLs and derives the
// identifiers the rest of the server hands to its collaborators: a
// filesystem-safe cache key for the clone cache, an authenticated transport
// URL for git, and the base URL plus encoded project path for the REST API.
//
// Everything in this package is a pure transformation of its inputs. There
// is no I/O, no logging, and no shared state, so concurrent use needs no
// coordination.
package repourl

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// SchemeHTTPS is the scheme for HTTP(S) repository references.
	SchemeHTTPS = "https"

	// SchemeSSH is the scheme for SSH repository references.
	SchemeSSH = "ssh"
)

var (
	// ErrInvalidURL is returned when the input cannot be parsed into a
	// host and a non-empty project path.
	ErrInvalidURL = errors.New("invalid repository URL")

	// ErrUnsupportedScheme is returned when a reference's scheme cannot
	// carry the requested credentials.
	ErrUnsupportedScheme = errors.New("scheme cannot carry credentials")
)

// ErrEmptyCacheKey is returned when sanitization would collapse the cache
// key to nothing. It matches ErrInvalidURL under errors.Is so callers can
// report both the same way.
var ErrEmptyCacheKey = fmt.Errorf("%w: cache key sanitizes to empty", ErrInvalidURL)

// pathSegment matches a single GitLab path segment: letters, digits,
// underscores, dashes and dots, not starting with a dash.
var pathSegment = regexp.MustCompile(`^[A-Za-z0-9_.][A-Za-z0-9_.-]*$`)

// NormalizedRepoRef is the canonical, validated form of a repository
// location. It is constructed once per request by Normalize and never
// mutated afterwards.
type NormalizedRepoRef struct {
	// Scheme is SchemeHTTPS or SchemeSSH, inferred from the input.
	Scheme string

	// Host is the lowercase hostname (with port, if any), credentials
	// stripped.
	Host string

	// ProjectPath holds the namespace segments and the project name, in
	// order, with the ".git" suffix removed. Segments preserve case
	// because GitLab paths are case-sensitive.
	ProjectPath []string
}

// Normalize parses an arbitrary repository URL into a NormalizedRepoRef.
//
// Accepted forms are standard URLs (https://host/group/project[.git],
// ssh://git@host/group/project) and the SCP-like SSH shorthand
// (git@host:group/project.git). Credentials embedded in the input are
// discarded; they are supplied separately when needed.
func Normalize(raw string) (NormalizedRepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NormalizedRepoRef{}, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	var scheme, host, path string
	if h, p, ok := splitSCPLike(raw); ok {
		scheme, host, path = SchemeSSH, h, p
	} else {
		u, err := url.Parse(raw)
		if err != nil {
			return NormalizedRepoRef{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return NormalizedRepoRef{}, fmt.Errorf("%w: missing scheme or host in %q", ErrInvalidURL, raw)
		}
		switch u.Scheme {
		case "http", "https":
			scheme = SchemeHTTPS
		case "ssh", "git", "git+ssh":
			scheme = SchemeSSH
		default:
			return NormalizedRepoRef{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
		}
		// u.User is intentionally dropped: userinfo present in the
		// input never survives normalization.
		host = u.Host
		path = u.Path
	}

	path = strings.TrimSuffix(path, ".git")

	var segments []string
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		if !pathSegment.MatchString(seg) {
			return NormalizedRepoRef{}, fmt.Errorf("%w: invalid path segment %q", ErrInvalidURL, seg)
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return NormalizedRepoRef{}, fmt.Errorf("%w: no project path in %q", ErrInvalidURL, raw)
	}

	ref := NormalizedRepoRef{
		Scheme:      scheme,
		Host:        strings.ToLower(host),
		ProjectPath: segments,
	}

	// Final guard: degenerate input that passed the checks above must not
	// produce an unusable cache key.
	if sanitizeKey(ref.Host+"/"+ref.ProjectPathString()) == "" {
		return NormalizedRepoRef{}, ErrEmptyCacheKey
	}

	return ref, nil
}

// splitSCPLike recognizes the SSH shorthand user@host:path. The form has
// no scheme; the first "@" separates the user from the host and the first
// ":" after it separates the host from the path.
func splitSCPLike(raw string) (host, path string, ok bool) {
	if strings.Contains(raw, "://") {
		return "", "", false
	}
	at := strings.Index(raw, "@")
	if at < 0 {
		return "", "", false
	}
	rest := raw[at+1:]
	colon := strings.Index(rest, ":")
	if colon <= 0 || colon == len(rest)-1 {
		return "", "", false
	}
	return rest[:colon], rest[colon+1:], true
}

// ProjectPathString returns the path-with-namespace, e.g. "group/sub/proj".
func (r NormalizedRepoRef) ProjectPathString() string {
	return strings.Join(r.ProjectPath, "/")
}

// TransportURL returns the reference as a URL suitable for git transport
// without credentials: https://host/path for HTTPS refs, ssh://git@host/path
// for SSH refs.
func (r NormalizedRepoRef) TransportURL() string {
	if r.Scheme == SchemeSSH {
		return "ssh://git@" + r.Host + "/" + r.ProjectPathString()
	}
	return r.Scheme + "://" + r.Host + "/" + r.ProjectPathString()
}

// APIBaseURL returns scheme://host, the root the REST collaborator builds
// endpoint URLs from.
func (r NormalizedRepoRef) APIBaseURL() string {
	return r.Scheme + "://" + r.Host
}

// EncodedProjectPath returns the path-with-namespace as a single
// percent-encoded path segment, the form the GitLab REST API expects as a
// project identifier.
func (r NormalizedRepoRef) EncodedProjectPath() string {
	encoded := make([]string, len(r.ProjectPath))
	for i, seg := range r.ProjectPath {
		encoded[i] = url.PathEscape(seg)
	}
	return strings.Join(encoded, "%2F")
}
