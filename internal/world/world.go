// Package world loads the scenario a runner drives: the behaviour tree and
// script files to load, the zones, and the characters spawned into them.
package world

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid world")

type File struct {
	// Trees and Scripts are resolved against the world file's directory.
	Trees   []string   `yaml:"trees"`
	Scripts []string   `yaml:"scripts,omitempty"`
	Zones   []ZoneSpec `yaml:"zones"`
}

type ZoneSpec struct {
	Name   string      `yaml:"name"`
	Spawns []SpawnSpec `yaml:"spawns"`
}

// SpawnSpec places Count characters with consecutive ids starting at ID,
// scattered within Radius around Position.
type SpawnSpec struct {
	ID          int32             `yaml:"id"`
	Count       int               `yaml:"count,omitempty"`
	Behaviour   string            `yaml:"behaviour"`
	Position    [3]float64        `yaml:"position,omitempty"`
	Radius      float64           `yaml:"radius,omitempty"`
	Speed       float64           `yaml:"speed,omitempty"`
	Orientation float64           `yaml:"orientation,omitempty"`
	Groups      []int32           `yaml:"groups,omitempty"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
	Aggro       *AggroSpec        `yaml:"aggro,omitempty"`
}

// AggroSpec selects the aggro decay of the spawned AIs.
type AggroSpec struct {
	// Mode is one of value, ratio or none.
	Mode     string  `yaml:"mode"`
	Value    float64 `yaml:"value,omitempty"`
	Ratio    float64 `yaml:"ratio,omitempty"`
	MinAggro float64 `yaml:"min,omitempty"`
}

// Load reads and validates a world file.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.resolve(filepath.Dir(path))
	return f, nil
}

// Parse decodes and validates a world document. Paths are left as written.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) normalize() {
	for i := range f.Zones {
		for j := range f.Zones[i].Spawns {
			s := &f.Zones[i].Spawns[j]
			if s.Count <= 0 {
				s.Count = 1
			}
			if s.Aggro != nil {
				s.Aggro.Mode = strings.ToLower(strings.TrimSpace(s.Aggro.Mode))
			}
		}
	}
}

func (f *File) resolve(dir string) {
	join := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range f.Trees {
		f.Trees[i] = join(p)
	}
	for i, p := range f.Scripts {
		f.Scripts[i] = join(p)
	}
}

// Validate checks zone names and character ids for uniqueness.
func (f *File) Validate() error {
	if len(f.Zones) == 0 {
		return fmt.Errorf("%w: no zones", ErrInvalid)
	}
	zones := make(map[string]bool)
	for _, z := range f.Zones {
		if strings.TrimSpace(z.Name) == "" {
			return fmt.Errorf("%w: zone without name", ErrInvalid)
		}
		if zones[z.Name] {
			return fmt.Errorf("%w: duplicate zone %q", ErrInvalid, z.Name)
		}
		zones[z.Name] = true
		ids := make(map[int32]bool)
		for _, s := range z.Spawns {
			if s.Behaviour == "" {
				return fmt.Errorf("%w: zone %s: spawn %d has no behaviour", ErrInvalid, z.Name, s.ID)
			}
			if s.ID < 0 || int64(s.ID)+int64(s.Count) > math.MaxInt32 {
				return fmt.Errorf("%w: zone %s: spawn %d is out of the id range", ErrInvalid, z.Name, s.ID)
			}
			for id := s.ID; id < s.ID+int32(s.Count); id++ {
				if ids[id] {
					return fmt.Errorf("%w: zone %s: duplicate character %d", ErrInvalid, z.Name, id)
				}
				ids[id] = true
			}
			if s.Aggro != nil {
				switch s.Aggro.Mode {
				case "value", "ratio", "none":
				default:
					return fmt.Errorf("%w: zone %s: unknown aggro mode %q", ErrInvalid, z.Name, s.Aggro.Mode)
				}
			}
		}
	}
	return nil
}

// Build creates the zones and schedules their characters. Behaviours are
// looked up in trees, so every tree file must be loaded first.
func (f *File) Build(trees *ai.TreeLoader, opts ...ai.ZoneOption) ([]*ai.Zone, error) {
	out := make([]*ai.Zone, 0, len(f.Zones))
	for _, spec := range f.Zones {
		z := ai.NewZone(spec.Name, opts...)
		for _, s := range spec.Spawns {
			root := trees.Tree(s.Behaviour)
			if root == nil {
				for _, built := range out {
					built.Shutdown()
				}
				z.Shutdown()
				return nil, fmt.Errorf("zone %s: behaviour %q: %w", spec.Name, s.Behaviour, ai.ErrUnknownType)
			}
			for i := range s.Count {
				a := spawn(s, s.ID+int32(i), root)
				for _, g := range s.Groups {
					z.GroupMgr().Add(ai.GroupID(g), a)
				}
				z.AddAI(a)
			}
		}
		out = append(out, z)
	}
	return out, nil
}

func spawn(s SpawnSpec, id int32, root ai.TreeNode) *ai.AI {
	chr := ai.NewBaseCharacter(ai.CharacterID(id))
	pos := ai.Vec3{X: s.Position[0], Y: s.Position[1], Z: s.Position[2]}
	rng := rand.New(rand.NewPCG(uint64(id), 0x5eed))
	if s.Radius > 0 {
		angle := rng.Float64() * 2 * math.Pi
		dist := math.Sqrt(rng.Float64()) * s.Radius
		pos = pos.Add(ai.Vec3{X: math.Cos(angle) * dist, Z: math.Sin(angle) * dist})
	}
	chr.SetPosition(pos)
	chr.SetSpeed(s.Speed)
	chr.SetOrientation(s.Orientation)
	for k, v := range s.Attributes {
		chr.SetAttribute(k, v)
	}
	a := ai.NewAI(chr, root, ai.WithRand(rng))
	if s.Aggro != nil {
		switch s.Aggro.Mode {
		case "value":
			a.AggroMgr().SetReduceByValue(s.Aggro.Value)
		case "ratio":
			a.AggroMgr().SetReduceByRatio(s.Aggro.Ratio, s.Aggro.MinAggro)
		case "none":
			a.AggroMgr().ResetReduceValue()
		}
	}
	return a
}
