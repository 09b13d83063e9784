package acl

import (
	"errors"
	"fmt"
	"os"
)

// Loader errors (spec.md §6: "ACL v3/v2 file formats").
var (
	ErrFileNotFound = errors.New("acl: file not found")
	ErrParse        = errors.New("acl: parse error")
)

// LoadFromFile reads, parses, and compiles an ACL file in one step.
func LoadFromFile(path string) (*CompiledList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("acl: reading %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and compiles src directly, useful for tests and
// for ACL text embedded in an entry's aci attribute.
func LoadFromBytes(src []byte) (*CompiledList, error) {
	parsed, err := Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return Compile(parsed), nil
}
