// Package metadata stores internal bookkeeping inside a backend's opaque
// string-to-string metadata bag without touching caller keys.
package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

const (
	ReservedPrefix = "__gp_"
	InternalKey    = ReservedPrefix + "internal"
	CurrentVersion = 1

	// DefaultMaxValueLength matches the strictest backend we talk to.
	DefaultMaxValueLength = 500

	chunkMarker = "~chunks:"
	maxChunks   = 64
)

// Internal is the bookkeeping payload. Lookup maps canonical names to
// backend values; Refs records references to related resources.
type Internal struct {
	Version int               `json:"v"`
	Lookup  map[string]string `json:"l,omitempty"`
	Refs    map[string]string `json:"r,omitempty"`
}

func DefaultInternal() Internal {
	return Internal{
		Version: CurrentVersion,
		Lookup:  map[string]string{},
		Refs:    map[string]string{},
	}
}

// Normalize fills nil tables and the version.
func (i Internal) Normalize() Internal {
	out := Internal{
		Version: i.Version,
		Lookup:  make(map[string]string, len(i.Lookup)),
		Refs:    make(map[string]string, len(i.Refs)),
	}
	if out.Version == 0 {
		out.Version = CurrentVersion
	}
	for key, value := range i.Lookup {
		out.Lookup[key] = value
	}
	for key, value := range i.Refs {
		out.Refs[key] = value
	}
	return out
}

func (i Internal) IsDefault() bool {
	return i.Version == CurrentVersion && len(i.Lookup) == 0 && len(i.Refs) == 0
}

// Codec embeds and extracts the internal payload. Values longer than
// MaxValueLength are split over numbered chunk keys. A zero MaxValueLength
// disables chunking.
type Codec struct {
	Provider       string
	MaxValueLength int
}

func New(provider string, maxValueLength int) Codec {
	return Codec{Provider: provider, MaxValueLength: maxValueLength}
}

var defaultCodec = Codec{MaxValueLength: DefaultMaxValueLength}

func Embed(caller map[string]string, internal Internal) (map[string]string, error) {
	return defaultCodec.Embed(caller, internal)
}

func Extract(merged map[string]string) (map[string]string, Internal) {
	return defaultCodec.Extract(merged)
}

// Guard rejects caller keys that use the reserved prefix.
func (c Codec) Guard(caller map[string]string) error {
	reserved := []string{}
	for key := range caller {
		if strings.HasPrefix(key, ReservedPrefix) {
			reserved = append(reserved, key)
		}
	}
	if len(reserved) == 0 {
		return nil
	}
	sort.Strings(reserved)
	violations := make([]goerrors.FieldError, 0, len(reserved))
	for _, key := range reserved {
		violations = append(violations, goerrors.FieldError{
			Field:   "metadata." + key,
			Message: "uses the reserved prefix " + ReservedPrefix,
		})
	}
	return core.NewValidationError(c.Provider, "metadata uses reserved keys", violations...)
}

// Embed merges the internal payload into a copy of caller. Caller keys using
// the reserved prefix are rejected.
func (c Codec) Embed(caller map[string]string, internal Internal) (map[string]string, error) {
	if err := c.Guard(caller); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(internal.Normalize())
	if err != nil {
		return nil, core.NewUnknownError(c.Provider, "encode internal metadata", err)
	}

	merged := make(map[string]string, len(caller)+1)
	for key, value := range caller {
		merged[key] = value
	}
	encoded := string(payload)
	if c.MaxValueLength <= 0 || len(encoded) <= c.MaxValueLength {
		merged[InternalKey] = encoded
		return merged, nil
	}

	chunks := splitChunks(encoded, c.MaxValueLength)
	if len(chunks) > maxChunks {
		return nil, core.NewValidationError(c.Provider, "internal metadata too large", goerrors.FieldError{
			Field:   "metadata",
			Message: fmt.Sprintf("internal payload needs %d chunks, limit is %d", len(chunks), maxChunks),
		})
	}
	merged[InternalKey] = chunkMarker + strconv.Itoa(len(chunks))
	for index, chunk := range chunks {
		merged[chunkKey(index+1)] = chunk
	}
	return merged, nil
}

// Extract splits merged back into caller data and the internal payload. It
// never fails: any missing or damaged segment yields DefaultInternal.
func (c Codec) Extract(merged map[string]string) (map[string]string, Internal) {
	caller := make(map[string]string, len(merged))
	for key, value := range merged {
		if strings.HasPrefix(key, ReservedPrefix) {
			continue
		}
		caller[key] = value
	}

	head, ok := merged[InternalKey]
	if !ok {
		return caller, DefaultInternal()
	}
	payload, ok := assemble(head, merged)
	if !ok {
		return caller, DefaultInternal()
	}
	var internal Internal
	if err := json.Unmarshal([]byte(payload), &internal); err != nil {
		return caller, DefaultInternal()
	}
	if internal.Version < 1 || internal.Version > CurrentVersion {
		return caller, DefaultInternal()
	}
	return caller, internal.Normalize()
}

func assemble(head string, merged map[string]string) (string, bool) {
	if !strings.HasPrefix(head, chunkMarker) {
		return head, true
	}
	count, err := strconv.Atoi(strings.TrimPrefix(head, chunkMarker))
	if err != nil || count < 1 || count > maxChunks {
		return "", false
	}
	var builder strings.Builder
	for index := 1; index <= count; index++ {
		chunk, ok := merged[chunkKey(index)]
		if !ok {
			return "", false
		}
		builder.WriteString(chunk)
	}
	return builder.String(), true
}

func chunkKey(index int) string {
	return InternalKey + "." + strconv.Itoa(index)
}

// splitChunks cuts on rune boundaries so every chunk stays valid UTF-8.
func splitChunks(value string, size int) []string {
	chunks := []string{}
	for len(value) > 0 {
		if len(value) <= size {
			chunks = append(chunks, value)
			break
		}
		cut := size
		for cut > 0 && !utf8.RuneStart(value[cut]) {
			cut--
		}
		if cut == 0 {
			_, width := utf8.DecodeRuneInString(value)
			cut = width
		}
		chunks = append(chunks, value[:cut])
		value = value[cut:]
	}
	return chunks
}
