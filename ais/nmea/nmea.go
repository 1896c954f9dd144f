// Package nmea splits NMEA 0183 sentences, validates their checksums and
// decodes the AIS ones into ais.Message values.
package nmea

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// chars that indicates the start of a sentence.
	sentenceStart1 = "$"
	sentenceStart2 = "!"
	// token to delimit fields of a sentence.
	fieldSep = ","
	// token to delimit the checksum of a sentence.
	checksumSep = "*"
	// token delimiting an IEC 61162-450 tag block
	tagBlockSep = `\`
)

// Sentence formats carrying AIS payloads
var PrefixAIS = []string{"VDO", "VDM"}

var aisTalkers = []string{"AB", "AD", "AI", "AN", "AR", "AS", "AT", "AX", "BS", "SA"}

// Sentence contains general information about an NMEA sentence
type Sentence struct {
	SOS      string   // the sentence start $ or !
	Talker   string   // the sentence talker (e.g AI)
	Format   string   // the sentence format (e.g VDM)
	Fields   []string // fields after the format
	Checksum string   // checksum as received, upper case
	Raw      string   // the sentence as received, without tag block
	TagBlock TagBlock
}

// Parse splits raw into a Sentence. A leading tag block is split off and
// parsed. Both checksums are verified.
func Parse(raw string) (*Sentence, error) {
	raw = strings.TrimRight(raw, "\r\n")
	s := &Sentence{}

	if strings.HasPrefix(raw, tagBlockSep) {
		end := strings.Index(raw[1:], tagBlockSep)
		if end < 0 {
			return nil, errors.Wrap(ErrMalformed, "unterminated tag block")
		}
		tb, err := ParseTagBlock(raw[1 : end+1])
		if err != nil {
			return nil, err
		}
		s.TagBlock = tb
		raw = raw[end+2:]
	}

	if err := s.parse(raw); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sentence) parse(input string) error {
	s.Raw = input

	if strings.Count(s.Raw, checksumSep) != 1 {
		return errors.Wrap(ErrMalformed, "sentence does not contain single checksum separator")
	}
	if !strings.HasPrefix(s.Raw, sentenceStart1) && !strings.HasPrefix(s.Raw, sentenceStart2) {
		return errors.Wrap(ErrMalformed, "sentence does not start with '$' or '!'")
	}

	s.SOS = s.Raw[:1]
	fieldSum := strings.Split(s.Raw[1:], checksumSep)
	fields := strings.Split(fieldSum[0], fieldSep)
	address := fields[0]
	if len(address) < 3 {
		return errors.Wrapf(ErrMalformed, "short address field %q", address)
	}

	s.Talker, s.Format = address[:2], address[2:]
	for _, aisTalker := range aisTalkers {
		if strings.HasPrefix(address, aisTalker+"VD") {
			s.Talker, s.Format = aisTalker, address[len(aisTalker):]
			break
		}
	}
	s.Fields = fields[1:]
	s.Checksum = strings.ToUpper(strings.TrimSpace(fieldSum[1]))

	if err := s.sumOk(); err != nil {
		return errors.Wrapf(ErrChecksum, "sentence %s", err)
	}
	return nil
}

// sumOk reports whether the calculated checksum matches the message checksum.
func (s *Sentence) sumOk() error {
	body := s.Raw[1:strings.Index(s.Raw, checksumSep)]
	if calculated := checksum(body); calculated != s.Checksum {
		return fmt.Errorf("[%s != %s]", calculated, s.Checksum)
	}
	return nil
}

// IsAIS reports whether the sentence carries an AIS payload.
func (s *Sentence) IsAIS() bool {
	for _, f := range PrefixAIS {
		if s.Format == f {
			return true
		}
	}
	return false
}

func checksum(body string) string {
	var sum uint8
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("%02X", sum)
}

// Checksum returns the "*XX" suffix for raw, which starts with '$' or '!'
// and has no checksum yet.
func Checksum(raw string) string {
	if len(raw) == 0 {
		return checksumSep + checksum("")
	}
	return checksumSep + checksum(raw[1:])
}
