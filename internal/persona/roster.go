package persona

import (
	"hash/fnv"

	"github.com/dtran2108/collabo-speak/internal/transcript"
)

// Persona is one AI speaker the user converses with.
type Persona struct {
	Name   string `yaml:"name" json:"name"`
	Color  string `yaml:"color" json:"color"`
	Avatar string `yaml:"avatar" json:"avatar"`
}

// palette supplies deterministic colors for speakers that are not part of
// the configured roster, so unknown names still render.
var palette = []string{
	"#e07a5f", "#3d8361", "#5b7db1", "#b56576",
	"#8e7dbe", "#c98f3d", "#4f9d9d", "#a26769",
}

const userColor = "#2f6f4f"

type Roster struct {
	byName map[string]Persona
}

// NewRoster builds a roster from the configured personas. Name matching is
// case-sensitive.
func NewRoster(personas []Persona) *Roster {
	byName := make(map[string]Persona, len(personas))
	for _, p := range personas {
		if p.Name == "" {
			continue
		}
		if p.Color == "" {
			p.Color = derivedColor(p.Name)
		}
		byName[p.Name] = p
	}
	return &Roster{byName: byName}
}

// Defaults is the built-in persona roster used when none is configured.
func Defaults() []Persona {
	return []Persona{
		{Name: "Fiona", Color: "#e07a5f", Avatar: "fiona.png"},
		{Name: "Eli", Color: "#5b7db1", Avatar: "eli.png"},
		{Name: "Priya", Color: "#3d8361", Avatar: "priya.png"},
	}
}

// Known reports whether the name matches a configured persona.
func (r *Roster) Known(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Resolve returns the persona for a speaker name. Unknown names get a
// derived color from the palette so every speaker renders deterministically.
func (r *Roster) Resolve(name string) Persona {
	if name == transcript.SpeakerUser {
		return Persona{Name: name, Color: userColor}
	}
	if p, ok := r.byName[name]; ok {
		return p
	}
	return Persona{Name: name, Color: derivedColor(name)}
}

func derivedColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}
