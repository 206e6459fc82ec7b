package config

import (
	"fmt"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that reads human strings such as "100k",
// "2MiB" or a plain number. Units are binary.
type ByteSize int64

func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	return ByteSize(n), nil
}

// Decode lets envconfig fill a ByteSize.
func (b *ByteSize) Decode(value string) error {
	n, err := ParseByteSize(value)
	if err != nil {
		return err
	}

	*b = n
	return nil
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}

	return b.Decode(raw)
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}
