package nexus

import "strings"

// Segment is one component of an augmented path.
type Segment struct {
	Name  string
	Class string
}

func (s Segment) String() string {
	if s.Class == "" {
		return s.Name
	}
	return s.Name + ":" + s.Class
}

// ParsedPath is an absolute augmented path split into segments. The root
// group is the empty path.
type ParsedPath []Segment

// ParsePath splits an absolute augmented path such as
// "/entry:NXentry/data" into segments. A single trailing slash is
// accepted. Empty segments and empty names or classes are rejected.
func ParsePath(path string) (ParsedPath, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, &PathError{Path: path, Kind: NotAbsolute}
	}
	rest := strings.TrimSuffix(path[1:], "/")
	if rest == "" {
		if len(path) > 1 {
			return nil, &PathError{Path: path, Kind: Malformed}
		}
		return ParsedPath{}, nil
	}

	parts := strings.Split(rest, "/")
	parsed := make(ParsedPath, 0, len(parts))
	for _, part := range parts {
		name, class, augmented := strings.Cut(part, ":")
		if name == "" || name == "." || name == ".." || (augmented && class == "") {
			return nil, &PathError{Path: path, Kind: Malformed}
		}
		parsed = append(parsed, Segment{Name: name, Class: class})
	}
	return parsed, nil
}

// String returns the augmented form of p.
func (p ParsedPath) String() string {
	return p.join(Segment.String)
}

// Plain returns p without classes, as used by the container.
func (p ParsedPath) Plain() string {
	return p.join(func(s Segment) string { return s.Name })
}

func (p ParsedPath) join(part func(Segment) string) string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(part(s))
	}
	return b.String()
}

// Parent returns p without its last segment.
func (p ParsedPath) Parent() ParsedPath {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// Base returns the last segment of p. The root has none.
func (p ParsedPath) Base() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
