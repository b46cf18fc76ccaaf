package bestiary

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"rpgserver/combat/engine"
)

// Template はNPCの雛形
type Template struct {
	Name        string                 `yaml:"name" json:"name"`
	BlessureMax int                    `yaml:"blessureMax" json:"blessureMax"`
	Fatigue     int                    `yaml:"fatigue,omitempty" json:"fatigue"`
	Armure      int                    `yaml:"armure" json:"armure"`
	Seuil       int                    `yaml:"seuil" json:"seuil"`
	ActionsMax  int                    `yaml:"actionsMax,omitempty" json:"actionsMax"`
	Attacks     []engine.AttackProfile `yaml:"attacks" json:"attacks"`
}

// Bestiary is keyed by the lower-cased template name.
type Bestiary struct {
	templates map[string]Template
}

// Load は YAML のテンプレート一覧を読み込む
func Load(path string) (*Bestiary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Bestiary, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse bestiary: %w", err)
	}

	b := Empty()
	for i, t := range doc.Templates {
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if key == "" {
			return nil, fmt.Errorf("bestiary template %d has no name", i)
		}
		if _, dup := b.templates[key]; dup {
			return nil, fmt.Errorf("bestiary template %q is defined twice", t.Name)
		}
		if t.ActionsMax == 0 {
			t.ActionsMax = 1
		}
		b.templates[key] = t
	}
	return b, nil
}

func Empty() *Bestiary {
	return &Bestiary{templates: make(map[string]Template)}
}

func (b *Bestiary) Get(name string) (Template, bool) {
	t, ok := b.templates[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// List は名前順のテンプレート一覧
func (b *Bestiary) List() []Template {
	out := make([]Template, 0, len(b.templates))
	for _, t := range b.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Combatant はテンプレートから戦闘員の入力を作る。name が空ならテンプレート名
func (t Template) Combatant(name string, initiative int) engine.CombatantData {
	if name == "" {
		name = t.Name
	}
	return engine.CombatantData{
		Type:        engine.CombatantNPC,
		Name:        name,
		BlessureMax: t.BlessureMax,
		Fatigue:     t.Fatigue,
		Armure:      t.Armure,
		Seuil:       t.Seuil,
		ActionsMax:  t.ActionsMax,
		Initiative:  initiative,
		Attacks:     append([]engine.AttackProfile(nil), t.Attacks...),
	}
}
