// Package validation checks untrusted input arriving from clients.
package validation

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

// Packet and name limits
const (
	MaxPacketSize    = 64 * 1024
	MaxPlayerNameLen = 32
)

// Allow alphanumeric, spaces, hyphens, underscores, and basic punctuation for player names
var validPlayerNameChars = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.<>()]+$`)

// PacketValidator screens raw client payloads before they are decoded
type PacketValidator struct {
	rateLimiter *RateLimiter
}

// NewPacketValidator creates a validator allowing perSecond packets per
// client with the given burst.
func NewPacketValidator(perSecond float64, burst int) *PacketValidator {
	return &PacketValidator{
		rateLimiter: NewRateLimiter(perSecond, burst, time.Minute),
	}
}

// Close releases resources used by the validator
func (v *PacketValidator) Close() {
	v.rateLimiter.Close()
}

// Forget drops the rate limit state of a disconnected client
func (v *PacketValidator) Forget(client entity.ClientID) {
	v.rateLimiter.Forget(client)
}

// ValidatePacket checks size, identifier and rate of a payload sent by client
func (v *PacketValidator) ValidatePacket(payload []byte, client entity.ClientID) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty packet", protocol.ErrMalformedPacket)
	}
	if len(payload) > MaxPacketSize {
		return fmt.Errorf("packet too large: %d bytes (max %d)", len(payload), MaxPacketSize)
	}

	switch protocol.ServerPacketID(payload[0]) {
	case protocol.ServerJoin, protocol.ServerPlan:
	default:
		return fmt.Errorf("%w: unknown packet id %d", protocol.ErrMalformedPacket, payload[0])
	}

	if !v.rateLimiter.Allow(client) {
		return fmt.Errorf("rate limit exceeded for client %d", client)
	}
	return nil
}

// ValidatePlayerName validates and sanitizes a player name
func ValidatePlayerName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("player name cannot be empty")
	}
	if len(name) > MaxPlayerNameLen {
		return "", fmt.Errorf("player name too long: %d characters (max %d)", len(name), MaxPlayerNameLen)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("player name contains invalid UTF-8 characters")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("player name cannot be only whitespace")
	}

	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("player name contains control characters")
		}
	}

	if !validPlayerNameChars.MatchString(trimmed) {
		return "", fmt.Errorf("player name contains invalid characters (only alphanumeric, spaces, hyphens, underscores, and basic punctuation allowed)")
	}

	return html.EscapeString(trimmed), nil
}

// ValidateSector checks that a chosen jump destination is one the server offered
func ValidateSector(id entity.SectorID, offered []entity.SectorData) error {
	for _, s := range offered {
		if s.ID == id {
			return nil
		}
	}
	return fmt.Errorf("sector %d is not reachable from this battle", id)
}
