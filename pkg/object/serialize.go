package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MarshalCommit serializes a Commit to a deterministic text format:
//
//	parent H     (zero or more)
//	timestamp T
//	file "path" hash size mode checksum captured "type" "name"   (sorted by path)
//
//	message
//
// Strings that may contain spaces are Go-quoted.
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)

	paths := make([]string, 0, len(c.Files))
	for p := range c.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		e := c.Files[p]
		fmt.Fprintf(&buf, "file %s %s %d %o %d %d %s %s\n",
			strconv.Quote(p),
			string(e.Hash),
			e.Size,
			e.Mode,
			e.Checksum,
			e.Timestamp,
			strconv.Quote(e.MediaType),
			strconv.Quote(e.OriginalName),
		)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a Commit from its serialized form. A file path
// rejected by ValidatePath fails the parse with ErrInvalidPath.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &Commit{Message: message, Files: make(map[string]IndexEntry)}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		case "file":
			e, err := parseFileLine(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
			c.Files[e.Path] = e
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}

func parseFileLine(line string) (IndexEntry, error) {
	var e IndexEntry
	rest := line

	path, rest, err := cutQuoted(rest)
	if err != nil {
		return e, fmt.Errorf("file path: %w", err)
	}
	if err := ValidatePath(path); err != nil {
		return e, err
	}
	e.Path = path

	fields := strings.SplitN(rest, " ", 6)
	if len(fields) != 6 {
		return e, fmt.Errorf("malformed file entry %q", line)
	}
	e.Hash = Hash(fields[0])
	if e.Size, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return e, fmt.Errorf("file %q: bad size: %w", path, err)
	}
	mode, err := strconv.ParseUint(fields[2], 8, 32)
	if err != nil {
		return e, fmt.Errorf("file %q: bad mode: %w", path, err)
	}
	e.Mode = uint32(mode)
	checksum, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return e, fmt.Errorf("file %q: bad checksum: %w", path, err)
	}
	e.Checksum = uint32(checksum)
	if e.Timestamp, err = strconv.ParseInt(fields[4], 10, 64); err != nil {
		return e, fmt.Errorf("file %q: bad timestamp: %w", path, err)
	}

	rest = fields[5]
	if e.MediaType, rest, err = cutQuoted(rest); err != nil {
		return e, fmt.Errorf("file %q: media type: %w", path, err)
	}
	if e.OriginalName, rest, err = cutQuoted(rest); err != nil {
		return e, fmt.Errorf("file %q: original name: %w", path, err)
	}
	if rest != "" {
		return e, fmt.Errorf("file %q: trailing data %q", path, rest)
	}
	return e, nil
}

// cutQuoted reads one Go-quoted string from the front of s and returns it
// along with the remainder (leading separator removed).
func cutQuoted(s string) (string, string, error) {
	prefix, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", "", err
	}
	val, err := strconv.Unquote(prefix)
	if err != nil {
		return "", "", err
	}
	return val, strings.TrimPrefix(s[len(prefix):], " "), nil
}
