// Package customid encodes and decodes the routing key slashkit embeds in
// every button, select menu and modal it hands to Discord. The custom id
// carries the session the component is bound to and the definition id of the
// handler that should receive the interaction, so no server-side id table is
// needed.
package customid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	prefix    = "skit"
	delimiter = "."

	// Independent marks a custom id that is not bound to any session.
	// Components built with it always resolve with fresh definition-level
	// data instead of session state.
	Independent = "independent"
)

var (
	boundPattern       = regexp.MustCompile(`^skit\.[0-9a-fA-F-]{36}\.\d+$`)
	independentPattern = regexp.MustCompile(`^skit\.independent\.\d+$`)
	sessionIDPattern   = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

// ErrMalformed is returned by Parse for any string that matches neither the
// bound nor the independent format. Events carrying such ids are not ours and
// must be ignored without any session lookup.
var ErrMalformed = errors.New("custom id does not match the bound or independent format")

// CustomID is the decoded form of a slashkit custom id.
type CustomID struct {
	sessionRef   string
	definitionID string
}

// Bound constructs a custom id tied to the given session. The session id must
// be a 36 character UUID string.
func Bound(sessionID, definitionID string) (CustomID, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return CustomID{}, fmt.Errorf("invalid session id %q", sessionID)
	}
	return CustomID{sessionRef: sessionID, definitionID: definitionID}, nil
}

// NewIndependent constructs a session-independent custom id.
func NewIndependent(definitionID string) CustomID {
	return CustomID{sessionRef: Independent, definitionID: definitionID}
}

// Parse decodes a raw custom id string. It returns ErrMalformed for anything
// that does not conform to one of the two allowed formats.
func Parse(raw string) (CustomID, error) {
	if !boundPattern.MatchString(raw) && !independentPattern.MatchString(raw) {
		return CustomID{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	parts := strings.Split(raw, delimiter)
	return CustomID{sessionRef: parts[1], definitionID: parts[2]}, nil
}

// String returns the wire representation, "skit.<sessionRef>.<definitionId>".
func (c CustomID) String() string {
	return prefix + delimiter + c.sessionRef + delimiter + c.definitionID
}

// DefinitionID returns the definition id segment.
func (c CustomID) DefinitionID() string {
	return c.definitionID
}

// SessionID returns the session id for a bound custom id. The boolean is
// false for independent ids, which have no session.
func (c CustomID) SessionID() (string, bool) {
	if c.IsIndependent() {
		return "", false
	}
	return c.sessionRef, true
}

// IsIndependent reports whether this custom id is session-independent.
func (c CustomID) IsIndependent() bool {
	return c.sessionRef == Independent
}

// IsBound reports whether this custom id is bound to a session.
func (c CustomID) IsBound() bool {
	return !c.IsIndependent()
}
