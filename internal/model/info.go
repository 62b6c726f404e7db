package model

import (
	"github.com/example/go-voicetech-tts/internal/conditioning"
	"github.com/example/go-voicetech-tts/internal/native"
)

// Info summarizes a loaded bundle for the CLI and the /info endpoint.
type Info struct {
	Name       string                  `json:"model_name"`
	Version    string                  `json:"version"`
	Parameters int64                   `json:"parameters"`
	Speakers   int                     `json:"speakers"`
	Config     native.Config           `json:"config"`
	Languages  []conditioning.Language `json:"languages"`
	Accents    []conditioning.Accent   `json:"accents"`
	Styles     []conditioning.Style    `json:"styles"`
}

func (b *Bundle) Info() Info {
	return Info{
		Name:       b.Manifest.Name,
		Version:    b.Manifest.Version,
		Parameters: b.Model.ParameterCount(),
		Speakers:   b.Manifest.Speakers,
		Config:     b.Model.Config(),
		Languages:  conditioning.Languages(),
		Accents:    conditioning.Accents(),
		Styles:     conditioning.Styles(),
	}
}
