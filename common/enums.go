// Package common holds value types shared by the extraction packages and
// the program configuration, so neither has to import the other.
package common

import (
	"fmt"
	"strings"
)

// ScreenshotType is requested screenshot image format.
type ScreenshotType int

const (
	ScreenshotTypePng ScreenshotType = iota
	ScreenshotTypeJpeg
)

var screenshotTypeNames = []string{"png", "jpeg"}

// ScreenshotTypeNames returns names of all known screenshot formats.
func ScreenshotTypeNames() []string {
	return append([]string(nil), screenshotTypeNames...)
}

func (s ScreenshotType) String() string {
	if int(s) >= 0 && int(s) < len(screenshotTypeNames) {
		return screenshotTypeNames[s]
	}
	return fmt.Sprintf("ScreenshotType(%d)", int(s))
}

// ParseScreenshotType converts name into ScreenshotType, "jpg" is accepted as alias.
func ParseScreenshotType(name string) (ScreenshotType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "png", "":
		return ScreenshotTypePng, nil
	case "jpeg", "jpg":
		return ScreenshotTypeJpeg, nil
	}
	return ScreenshotTypePng, fmt.Errorf("%s is not a valid ScreenshotType, try [%s]", name, strings.Join(screenshotTypeNames, ", "))
}

func (s ScreenshotType) Ext() string {
	switch s {
	case ScreenshotTypeJpeg:
		return ".jpg"
	case ScreenshotTypePng:
		return ".png"
	default:
		// this should never happen
		panic("unsupported screenshot type requested")
	}
}

// MarshalText implements encoding.TextMarshaler, used by yaml.
func (s ScreenshotType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by yaml.
func (s *ScreenshotType) UnmarshalText(text []byte) error {
	v, err := ParseScreenshotType(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
