package filetree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidName = errors.New("invalid node name")
	ErrInvalidNode = errors.New("invalid file tree node")
)

// PathError is returned when an edit addresses a location the tree cannot
// hold without restructuring it.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q: %s", e.Path, e.Reason)
}

// Path addresses a file by root-level name, or by directory and name.
type Path struct {
	Dir  string
	Name string
}

func (p Path) String() string {
	if p.Dir == "" {
		return p.Name
	}
	return p.Dir + "/" + p.Name
}

// ParsePath accepts "name" or "dir/name". A single leading slash is ignored.
func ParsePath(s string) (Path, error) {
	trimmed := strings.TrimPrefix(s, "/")
	segments := strings.Split(trimmed, "/")

	switch len(segments) {
	case 1:
		if !ValidName(segments[0]) {
			return Path{}, &PathError{Path: s, Reason: "invalid file name"}
		}
		return Path{Name: segments[0]}, nil
	case 2:
		if !ValidName(segments[0]) || !ValidName(segments[1]) {
			return Path{}, &PathError{Path: s, Reason: "invalid path segment"}
		}
		return Path{Dir: segments[0], Name: segments[1]}, nil
	default:
		return Path{}, &PathError{Path: s, Reason: "only root files and files directly inside a directory can be edited"}
	}
}
