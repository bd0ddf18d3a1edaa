package star_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/jmerrifield20/starledger/internal/star"
)

func validStar() star.Star {
	return star.Star{
		RA:            "16h 29m 1.0s",
		Dec:           "-26° 29' 24.9",
		Constellation: "Scorpius",
		Story:         "Found star using https://www.google.com/sky/",
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*star.Star)
		want   error
	}{
		{"valid", func(*star.Star) {}, nil},
		{"missing ra", func(s *star.Star) { s.RA = "" }, star.ErrMissingCoordinates},
		{"missing dec", func(s *star.Star) { s.Dec = "" }, star.ErrMissingCoordinates},
		{"missing story", func(s *star.Star) { s.Story = "" }, star.ErrMissingStory},
		{"story too long", func(s *star.Star) { s.Story = strings.Repeat("a", star.MaxStoryBytes+1) }, star.ErrStoryTooLong},
		{"non-ascii story", func(s *star.Star) { s.Story = "étoile" }, star.ErrStoryNotASCII},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validStar()
			tc.mutate(&s)
			if err := s.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	s := validStar()
	enc := s.Encode()
	if enc.Story == s.Story {
		t.Fatal("Encode() did not hex-encode the story")
	}
	if s.Story != validStar().Story {
		t.Error("Encode() mutated its receiver")
	}

	dec := star.Decode(enc)
	if dec.StoryDecoded != s.Story {
		t.Errorf("StoryDecoded = %q, want %q", dec.StoryDecoded, s.Story)
	}
	if dec.Story != enc.Story {
		t.Error("Decode() should keep the encoded story")
	}
}

func TestDecode_notHex(t *testing.T) {
	dec := star.Decode(star.Star{Story: "plain text"})
	if dec.StoryDecoded != "plain text" {
		t.Errorf("StoryDecoded = %q", dec.StoryDecoded)
	}
}
