// Package star defines the star record users register on the ledger.
package star

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// MaxStoryBytes caps the story at roughly 250 words.
const MaxStoryBytes = 500

var (
	ErrMissingCoordinates = errors.New("star requires right ascension and declination")
	ErrMissingStory       = errors.New("star requires a story")
	ErrStoryTooLong       = fmt.Errorf("star story exceeds %d bytes", MaxStoryBytes)
	ErrStoryNotASCII      = errors.New("star story must be ASCII text")
)

// Star is a star as submitted by a client. Story is plain text.
type Star struct {
	RA            string `json:"ra" binding:"required"`
	Dec           string `json:"dec" binding:"required"`
	Magnitude     string `json:"mag,omitempty"`
	Constellation string `json:"cen,omitempty"`
	Story         string `json:"story" binding:"required"`
}

// Validate checks the fields that gin binding cannot express.
func (s *Star) Validate() error {
	if s.RA == "" || s.Dec == "" {
		return ErrMissingCoordinates
	}
	if s.Story == "" {
		return ErrMissingStory
	}
	if len(s.Story) > MaxStoryBytes {
		return ErrStoryTooLong
	}
	for i := 0; i < len(s.Story); i++ {
		if s.Story[i] > 0x7f {
			return ErrStoryNotASCII
		}
	}
	return nil
}

// Encode returns the ledger form of s, with the story hex-encoded.
func (s *Star) Encode() Star {
	out := *s
	out.Story = hex.EncodeToString([]byte(s.Story))
	return out
}

// Decoded is a ledger star with its story decoded back to text.
type Decoded struct {
	Star
	StoryDecoded string `json:"storyDecoded"`
}

// Decode reverses Encode. A story that is not valid hex is returned as-is in
// StoryDecoded.
func Decode(s Star) Decoded {
	text, err := hex.DecodeString(s.Story)
	if err != nil {
		return Decoded{Star: s, StoryDecoded: s.Story}
	}
	return Decoded{Star: s, StoryDecoded: string(text)}
}
