package reactivedomain

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// StreamNameBuilder maps aggregate types and ids to canonical stream names.
// The output format is a compatibility contract: any change to the casing or
// prefix rule is a breaking change to existing stored data.
type StreamNameBuilder struct {
	prefix string
}

// StreamNameOption configures a StreamNameBuilder.
type StreamNameOption func(*StreamNameBuilder)

// WithStreamPrefix sets a lowercase prefix prepended to aggregate and category
// stream names, separated by a dot. Useful to partition one store between
// bounded contexts.
func WithStreamPrefix(prefix string) StreamNameOption {
	return func(b *StreamNameBuilder) {
		b.prefix = prefix
	}
}

// NewStreamNameBuilder creates a builder. Supplying an explicit prefix that is
// empty or whitespace is ambiguous and fails; use no option instead.
func NewStreamNameBuilder(opts ...StreamNameOption) (*StreamNameBuilder, error) {
	b := &StreamNameBuilder{prefix: "-"}
	for _, opt := range opts {
		opt(b)
	}
	switch {
	case b.prefix == "-":
		b.prefix = ""
	case strings.TrimSpace(b.prefix) == "":
		return nil, ErrEmptyStreamPrefix
	default:
		b.prefix = strings.ToLower(strings.TrimSpace(b.prefix))
	}
	return b, nil
}

// ForAggregate returns the stream name for one aggregate instance:
// {prefix.}{camelCaseType}-{id}. An id that parses as a UUID is rendered as
// 32 hex digits without dashes.
func (b *StreamNameBuilder) ForAggregate(typeName, id string) string {
	return b.qualified(camelCase(typeName)) + "-" + canonicalID(id)
}

// ForCategory returns the store-level category stream for an aggregate type:
// $ce-{prefix.}{camelCaseType}.
func (b *StreamNameBuilder) ForCategory(typeName string) string {
	return "$ce-" + b.qualified(camelCase(typeName))
}

// ForEventType returns the store-level by-event-type projection stream:
// $et-{eventType}.
func (b *StreamNameBuilder) ForEventType(eventType string) string {
	return "$et-" + eventType
}

func (b *StreamNameBuilder) qualified(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + "." + name
}

func canonicalID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return hex.EncodeToString(u[:])
	}
	return id
}

func camelCase(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
