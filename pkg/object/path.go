package object

import (
	"fmt"
	"strings"
)

// MetaDirName is the repository metadata directory. No tracked path may
// name it.
const MetaDirName = ".dee"

// ValidatePath checks that p is a clean, relative, slash-separated path
// that stays inside the working tree. It rejects a leading slash or drive
// letter, backslashes and NUL bytes, empty "." and ".." segments, and any
// metadata directory segment.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
	case strings.ContainsAny(p, "\\\x00"):
		return fmt.Errorf("%w: %q has a reserved character", ErrInvalidPath, p)
	case len(p) >= 2 && p[1] == ':' && isASCIILetter(p[0]):
		return fmt.Errorf("%w: %q has a drive letter", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".", "..":
			return fmt.Errorf("%w: %q has segment %q", ErrInvalidPath, p, seg)
		case MetaDirName:
			return fmt.Errorf("%w: %q is inside %s", ErrInvalidPath, p, MetaDirName)
		}
	}
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
