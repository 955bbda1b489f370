package domain

import (
	"fmt"
	"strings"
)

type Outfit string

const (
	OutfitEveryday Outfit = "Alltagskleidung"
	OutfitSports   Outfit = "Sportkleidung"
	OutfitSuit     Outfit = "Anzug"
	OutfitDress    Outfit = "Kleid"
	OutfitSkirt    Outfit = "Rock"
	OutfitGown     Outfit = "Abendkleid"
	OutfitTuxedo   Outfit = "Tuxedo"
)

type Setting string

const (
	SettingNewsStudio Setting = "News Studio"
	SettingHawaii     Setting = "Hawaii am Strand"
	SettingAlps       Setting = "Berggipfel in den Alpen"
	SettingVolcano    Setting = "Am Rande eines Vulkans"
	SettingPlanet     Setting = "Fremder Planet"
)

type Style string

const (
	StyleCinematic Style = "Cinematic"
	StyleCartoon   Style = "Cartoon"
	StyleNeonpunk  Style = "Neonpunk"
	StyleCyberpunk Style = "Cyberpunk"
)

type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// DefaultAspectRatio is applied when a request omits the ratio.
const DefaultAspectRatio = AspectSquare

var (
	Outfits      = []Outfit{OutfitEveryday, OutfitSports, OutfitSuit, OutfitDress, OutfitSkirt, OutfitGown, OutfitTuxedo}
	Settings     = []Setting{SettingNewsStudio, SettingHawaii, SettingAlps, SettingVolcano, SettingPlanet}
	Styles       = []Style{StyleCinematic, StyleCartoon, StyleNeonpunk, StyleCyberpunk}
	AspectRatios = []AspectRatio{AspectSquare, AspectLandscape, AspectPortrait}
)

func (o Outfit) Valid() bool      { return contains(Outfits, o) }
func (s Setting) Valid() bool     { return contains(Settings, s) }
func (s Style) Valid() bool       { return contains(Styles, s) }
func (a AspectRatio) Valid() bool { return contains(AspectRatios, a) }

func contains[T comparable](set []T, v T) bool {
	for _, item := range set {
		if item == v {
			return true
		}
	}
	return false
}

// Options is the look selected by the visitor for the portrait.
type Options struct {
	Outfit      Outfit      `json:"outfit"`
	Setting     Setting     `json:"setting"`
	Style       Style       `json:"style"`
	AspectRatio AspectRatio `json:"aspect_ratio"`
}

// Normalize trims the values and fills in the default aspect ratio.
func (o *Options) Normalize() {
	if o == nil {
		return
	}
	o.Outfit = Outfit(strings.TrimSpace(string(o.Outfit)))
	o.Setting = Setting(strings.TrimSpace(string(o.Setting)))
	o.Style = Style(strings.TrimSpace(string(o.Style)))
	o.AspectRatio = AspectRatio(strings.TrimSpace(string(o.AspectRatio)))
	if o.AspectRatio == "" {
		o.AspectRatio = DefaultAspectRatio
	}
}

// Validate rejects unset values and anything outside the closed enumerations.
func (o Options) Validate() error {
	if !o.Outfit.Valid() {
		return fmt.Errorf("%w: outfit %q", ErrInvalidOptions, o.Outfit)
	}
	if !o.Setting.Valid() {
		return fmt.Errorf("%w: setting %q", ErrInvalidOptions, o.Setting)
	}
	if !o.Style.Valid() {
		return fmt.Errorf("%w: style %q", ErrInvalidOptions, o.Style)
	}
	if !o.AspectRatio.Valid() {
		return fmt.Errorf("%w: aspect ratio %q", ErrInvalidOptions, o.AspectRatio)
	}
	return nil
}
