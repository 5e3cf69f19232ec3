package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Voice is a named speech voice and its provider id.
type Voice struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// voiceCatalog maps canonical voice keys (see canonicalVoiceKey) to display
// names and provider voice ids.
var voiceCatalog = map[string]Voice{
	"ADAM":          {Name: "Adam", ID: "pNInz6obpgDQGcFmaJgB"},
	"ALICE":         {Name: "Alice", ID: "Xb7hH8MSUJpSbSDYk0k2"},
	"ANTONI":        {Name: "Antoni", ID: "ErXwobaYiN019PkySvjV"},
	"ARIA":          {Name: "Aria", ID: "ErXwobaYiN019PkySvjV"},
	"ARNOLD":        {Name: "Arnold", ID: "VR6AewLTigWG4xSOukaG"},
	"BILL":          {Name: "Bill", ID: "pqHfZKP75CvOlQylNhV4"},
	"CALLUM":        {Name: "Callum", ID: "N2lVS1w4EtoT3dr4eOWO"},
	"ELLI":          {Name: "Elli", ID: "MF3mGyEYCl7XYWbV9V6O"},
	"EMILY":         {Name: "Emily", ID: "LcfcDJNUP1GQjkzn1xUU"},
	"FREYA":         {Name: "Freya", ID: "jsCqWAovK2LkecY7zXl4"},
	"SARAH":         {Name: "Sarah", ID: "EXAVITQu4vr4xnSDxMaL"},
	"SERENA":        {Name: "Serena", ID: "pMsXgVXv3BLzUgSXRplE"},
	"THOMAS":        {Name: "Thomas", ID: "GBv7mTt0atIp3Br8iCZE"},
	"MICHAEL":       {Name: "Michael", ID: "flq6f7yk4E4fJM5XTYuZ"},
	"ETHAN":         {Name: "Ethan", ID: "g5CIjZEefAph4nQFvHAz"},
	"GEORGE":        {Name: "George", ID: "Yko7PKHZNXotIFUBG7I9"},
	"PAUL":          {Name: "Paul", ID: "5Q0t7uMcjvnagumLfvZi"},
	"GIGI":          {Name: "Gigi", ID: "jBpfuIE2acCO8z3wKNLl"},
	"HUYEN_TRANG":   {Name: "Huyen Trang", ID: "BlZK9tHPU6XXjwOSIiYA"},
	"LY_HAI":        {Name: "Ly Hai", ID: "7hsfEc7irDn6E8br0qfw"},
	"TRAN_KIM_HUNG": {Name: "Tran Kim Hung", ID: "DXiwi9uoxet6zAiZXynP"},
	"SANTA_CLAUS":   {Name: "Santa Claus", ID: "knrPHWnBmmDHMoiMeP3l"},
}

var voiceIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{20}$`)

// canonicalVoiceKey folds "Huyen Trang", "huyen-trang" and "HUYEN_TRANG" to one key.
func canonicalVoiceKey(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// LookupVoice resolves a voice name to its catalog entry.
func LookupVoice(name string) (Voice, error) {
	v, ok := voiceCatalog[canonicalVoiceKey(name)]
	if !ok {
		return Voice{}, ErrValidation("unknown voice %q", name)
	}
	return v, nil
}

// Voices returns the catalog sorted by display name.
func Voices() []Voice {
	out := make([]Voice, 0, len(voiceCatalog))
	for _, v := range voiceCatalog {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateCatalogs checks the static voice and image-model tables. It runs at
// startup so a bad entry fails the process instead of a request.
func ValidateCatalogs() error {
	for key, v := range voiceCatalog {
		if key != canonicalVoiceKey(v.Name) {
			return fmt.Errorf("voice %q: key %q does not match its name", v.Name, key)
		}
		if !voiceIDPattern.MatchString(v.ID) {
			return fmt.Errorf("voice %q: malformed id %q", v.Name, v.ID)
		}
	}
	for key, m := range imageModels {
		if m.Label == "" {
			return fmt.Errorf("image model %q: empty label", key)
		}
	}
	return nil
}

// ImageModel is a selectable image-generation model.
type ImageModel struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// DefaultImageModel is used when a request does not select one.
const DefaultImageModel = "model1"

var imageModels = map[string]ImageModel{
	"model1": {Key: "model1", Label: "stable-diffusion-xl-base-1.0"},
	"model2": {Key: "model2", Label: "stable-diffusion-3.5-large"},
}

// LookupImageModel resolves a model selector; empty selects DefaultImageModel.
func LookupImageModel(key string) (ImageModel, error) {
	if key == "" {
		key = DefaultImageModel
	}
	m, ok := imageModels[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return ImageModel{}, ErrValidation("unknown image model %q", key)
	}
	return m, nil
}
